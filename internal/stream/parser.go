package stream

// Process decodes src, sending one Chunk per answer fragment followed by a
// final Done or Error chunk. The final chunk is always delivered, so the
// consumer must range over Chunks until it is closed.
func (p *Parser) Process(src Source) {
	defer close(p.chunks)

	opts := append(append([]Option(nil), p.opts...), WithObserver(func(ev Event) {
		if text := Fragment(ev); text != "" {
			p.send(Chunk{Content: text})
		}
	}))

	p.result, p.err = Decode(p.ctx, src, opts...)
	if p.err != nil {
		p.chunks <- Chunk{Error: p.err}
		return
	}
	result := p.result
	p.chunks <- Chunk{Done: true, Result: &result}
}

// send delivers a fragment unless the context has ended.
func (p *Parser) send(c Chunk) {
	select {
	case p.chunks <- c:
	case <-p.ctx.Done():
	}
}
