// Package guard remembers recently emitted replies and flags near-duplicates
// before they reach the client.
//
// The similarity test is a prefix-containment heuristic:
// both strings are lower-cased, and when the shorter one has fewer than 24
// characters they must match exactly. Otherwise the leading 60% (of the
// shorter length) of either string has to appear somewhere inside the other.
package guard

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// DefaultCapacity is the number of replies kept in history.
	DefaultCapacity = 12

	// DefaultNotice is appended to replies that repeat recent output.
	DefaultNotice = "\n\n(Tekrar algılandı; farklı bir ifade kullanıldı.)"

	exactMatchBelow = 24
	prefixRatio     = 0.6
)

// Guard holds a bounded, most-recent-first reply history shared by all requests.
// The zero value is not usable; construct with New.
type Guard struct {
	mu              sync.Mutex
	history         []string
	capacity        int
	notice          string
	recordAnnotated bool
}

// Option customises a Guard.
type Option func(*Guard)

// WithCapacity overrides the history size. Values below one are ignored.
func WithCapacity(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.capacity = n
		}
	}
}

// WithNotice overrides the text appended to repetitive replies.
func WithNotice(notice string) Option {
	return func(g *Guard) {
		if notice != "" {
			g.notice = notice
		}
	}
}

// WithRecordAnnotated selects whether Apply records the annotated reply (the
// default) or the raw candidate.
func WithRecordAnnotated(annotated bool) Option {
	return func(g *Guard) { g.recordAnnotated = annotated }
}

// New returns an empty Guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		capacity:        DefaultCapacity,
		notice:          DefaultNotice,
		recordAnnotated: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.history = make([]string, 0, g.capacity+1)
	return g
}

// Check reports whether candidate is similar to any reply in history.
func (g *Guard) Check(candidate string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.matchLocked(candidate)
}

// Record inserts reply at the head of history, evicting the oldest entry once
// capacity is exceeded.
func (g *Guard) Record(reply string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked(reply)
}

// Apply checks candidate, appends the notice when it repeats recent output and
// records the result. The three steps run under one lock.
func (g *Guard) Apply(candidate string) (reply string, repetitive bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	repetitive = g.matchLocked(candidate)
	reply = candidate
	if repetitive {
		reply = candidate + g.notice
	}
	if g.recordAnnotated {
		g.recordLocked(reply)
	} else {
		g.recordLocked(candidate)
	}
	return reply, repetitive
}

// History returns a copy of the stored replies, most recent first.
func (g *Guard) History() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.history))
	copy(out, g.history)
	return out
}

// Len reports the number of stored replies.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.history)
}

func (g *Guard) matchLocked(candidate string) bool {
	for _, prev := range g.history {
		if Similar(prev, candidate) {
			return true
		}
	}
	return false
}

func (g *Guard) recordLocked(reply string) {
	g.history = append(g.history, "")
	copy(g.history[1:], g.history)
	g.history[0] = reply
	if len(g.history) > g.capacity {
		g.history[g.capacity] = ""
		g.history = g.history[:g.capacity]
	}
}

// Similar applies the repetition predicate to a and b. Lengths are counted in
// characters, not bytes.
func Similar(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	minLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n < minLen {
		minLen = n
	}
	if minLen < exactMatchBelow {
		return a == b
	}

	k := int(float64(minLen) * prefixRatio)
	return strings.Contains(a, prefix(b, k)) || strings.Contains(b, prefix(a, k))
}

// prefix returns the first n characters of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
