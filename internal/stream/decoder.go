// Package stream decodes the loosely framed event stream returned by the chat
// service into a single aggregated answer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"go.uber.org/zap"
)

// previewLen caps how much of a chunk or fragment is echoed into debug logs.
const previewLen = 100

// Source supplies successive chunks of a response body. Next returns io.EOF
// once the stream has ended.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// State is the lifecycle stage of a decode call.
type State int

const (
	StateOpen State = iota
	StateReading
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReading:
		return "reading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDelimiterPolicy selects how frame delimiters are detected.
func WithDelimiterPolicy(policy DelimiterPolicy) Option {
	return func(d *Decoder) {
		d.policy = policy
	}
}

// WithFallbackThreshold sets the single-newline fallback threshold.
func WithFallbackThreshold(n int) Option {
	return func(d *Decoder) {
		d.threshold = n
	}
}

// WithObserver registers fn to receive every event after it has been
// folded into the aggregate, in stream order.
func WithObserver(fn func(Event)) Option {
	return func(d *Decoder) {
		d.observer = fn
	}
}

// Decoder drives one stream from its Source to a Result. A Decoder holds
// only configuration; every Decode call owns its own buffer and aggregate,
// so one Decoder may serve concurrent calls.
type Decoder struct {
	logger    *zap.Logger
	policy    DelimiterPolicy
	threshold int
	observer  func(Event)
}

// NewDecoder returns a Decoder with the given options applied.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		logger:    zap.NewNop(),
		policy:    Redetect,
		threshold: DefaultFallbackThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode is shorthand for NewDecoder(opts...).Decode(ctx, src).
func Decode(ctx context.Context, src Source, opts ...Option) (Result, error) {
	return NewDecoder(opts...).Decode(ctx, src)
}

// Decode reads src until end of stream and returns the aggregated answer.
// A transport failure, an error event or cancellation of ctx ends the call
// with an error and no result. If src is an io.Closer it is closed before
// Decode returns.
func (d *Decoder) Decode(ctx context.Context, src Source) (Result, error) {
	if c, ok := src.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	run := &decodeRun{
		Decoder:  d,
		reframer: NewReframer(d.policy, d.threshold),
		agg:      NewAggregator(),
		state:    StateOpen,
	}
	res, err := run.loop(ctx, src)
	if err != nil {
		run.transition(StateFailed, zap.Error(err))
		return Result{}, err
	}
	run.transition(StateDone,
		zap.Int("answer_len", len(res.Answer)),
		zap.Bool("raw_fallback", res.RawFallback),
	)
	return res, nil
}

// decodeRun is the mutable state of a single Decode call.
type decodeRun struct {
	*Decoder
	reframer *Reframer
	agg      *Aggregator
	state    State
	chunks   int
}

func (r *decodeRun) loop(ctx context.Context, src Source) (Result, error) {
	r.transition(StateReading)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("stream cancelled: %w", err)
		}

		chunk, err := src.Next(ctx)
		if chunk != "" {
			if ferr := r.feed(chunk); ferr != nil {
				return Result{}, ferr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return Result{}, fmt.Errorf("stream cancelled: %w", cerr)
			}
			var terr *TransportError
			if errors.As(err, &terr) {
				return Result{}, err
			}
			return Result{}, &TransportError{Op: "error reading response stream", Err: err}
		}
	}

	if pending := r.reframer.Pending(); pending != "" {
		r.logger.Debug("discarding unterminated frame", zap.String("preview", preview(pending)))
	}
	res := r.agg.Finalize()
	if res.RawFallback {
		r.logger.Debug("no answer decoded, falling back to raw response text",
			zap.Int("raw_len", len(res.Answer)))
	}
	return res, nil
}

func (r *decodeRun) feed(chunk string) error {
	r.chunks++
	r.agg.Record(chunk)
	frames := r.reframer.Feed(chunk)
	r.logger.Debug("received chunk",
		zap.Int("seq", r.chunks),
		zap.Int("size", len(chunk)),
		zap.String("preview", preview(chunk)),
		zap.Int("frames", len(frames)),
		zap.String("delimiter", fmt.Sprintf("%q", r.reframer.Delimiter())),
	)

	for _, frame := range frames {
		ev := Classify(frame)
		r.trace(ev)
		if err := r.agg.Apply(ev); err != nil {
			return err
		}
		if r.observer != nil {
			r.observer(ev)
		}
	}
	return nil
}

func (r *decodeRun) trace(ev Event) {
	switch e := ev.(type) {
	case Message:
		if e.Answer != "" {
			r.logger.Debug("appending answer fragment", zap.String("preview", preview(e.Answer)))
		}
		if e.ConversationID != "" {
			r.logger.Debug("conversation id", zap.String("conversation_id", e.ConversationID))
		}
	case AgentMessage:
		r.logger.Debug("appending agent fragment", zap.String("preview", preview(e.Text)))
	case ErrorEvent:
		r.logger.Debug("error event", zap.ByteString("payload", e.Payload))
	case DoneEvent:
		r.logger.Debug("done event")
	case Unknown:
		switch {
		case e.Cause != nil:
			r.logger.Debug("skipping malformed frame", zap.Error(e.Cause))
		case e.Raw != "":
			r.logger.Debug("ignoring frame", zap.String("preview", preview(e.Raw)))
		}
	}
}

func (r *decodeRun) transition(to State, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.Stringer("from", r.state),
		zap.Stringer("to", to),
	}, fields...)
	r.state = to
	r.logger.Debug("stream state", fields...)
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
