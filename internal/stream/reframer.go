package stream

import "strings"

// DefaultFallbackThreshold is the buffer size past which a stream that has
// never shown a frame delimiter is split on single newlines instead.
const DefaultFallbackThreshold = 1000

// Frame delimiters in priority order.
var delimiters = []string{"\n\n", "\r\n\r\n", "\r\r"}

// DelimiterPolicy controls how the Reframer picks a delimiter across feeds.
type DelimiterPolicy int

const (
	// Redetect picks the first delimiter present in the buffer on every feed.
	Redetect DelimiterPolicy = iota
	// Lock commits to the first delimiter ever found for the rest of the stream.
	Lock
)

// ParseDelimiterPolicy maps a config value to a policy. Unknown values
// report false.
func ParseDelimiterPolicy(s string) (DelimiterPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "redetect":
		return Redetect, true
	case "lock":
		return Lock, true
	default:
		return Redetect, false
	}
}

func (p DelimiterPolicy) String() string {
	if p == Lock {
		return "lock"
	}
	return "redetect"
}

// Reframer turns arbitrarily chunked text into complete frames. Text after
// the last delimiter stays buffered until a later feed completes it.
type Reframer struct {
	policy    DelimiterPolicy
	threshold int

	buf     string
	matched bool
	locked  string
	last    string
}

// NewReframer returns a Reframer. A threshold <= 0 selects
// DefaultFallbackThreshold.
func NewReframer(policy DelimiterPolicy, threshold int) *Reframer {
	if threshold <= 0 {
		threshold = DefaultFallbackThreshold
	}
	return &Reframer{policy: policy, threshold: threshold}
}

// Feed appends chunk to the buffer and returns every frame that is now
// complete, in stream order. It may return none.
func (r *Reframer) Feed(chunk string) []string {
	r.buf += chunk

	delim := r.pick()
	switch {
	case delim != "":
		r.matched = true
		if r.policy == Lock && r.locked == "" {
			r.locked = delim
		}
	case !r.matched && len(r.buf) > r.threshold:
		// Degraded protocol: nothing looks like a frame delimiter yet.
		delim = "\n"
	default:
		r.last = ""
		return nil
	}
	r.last = delim

	parts := strings.Split(r.buf, delim)
	r.buf = parts[len(parts)-1]
	return parts[:len(parts)-1]
}

func (r *Reframer) pick() string {
	if r.locked != "" {
		if strings.Contains(r.buf, r.locked) {
			return r.locked
		}
		return ""
	}
	for _, d := range delimiters {
		if strings.Contains(r.buf, d) {
			return d
		}
	}
	return ""
}

// Pending returns the buffered text that has not yet formed a frame.
func (r *Reframer) Pending() string {
	return r.buf
}

// Delimiter returns the delimiter used by the most recent Feed, or "" if
// that feed produced no split.
func (r *Reframer) Delimiter() string {
	return r.last
}
