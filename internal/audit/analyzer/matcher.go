package analyzer

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Matcher decides whether an entry's text triggers a rule.
type Matcher interface {
	Matches(text string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(text string) bool

func (f MatcherFunc) Matches(text string) bool { return f(text) }

// Substring matches case-insensitively.
type Substring string

func (s Substring) Matches(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(string(s)))
}

// Regexp matches with a compiled regular expression.
type Regexp struct {
	re *regexp.Regexp
}

// MustRegexp compiles pattern case-insensitively and panics on error.
func MustRegexp(pattern string) *Regexp {
	return &Regexp{re: regexp.MustCompile("(?i)" + pattern)}
}

func (r *Regexp) Matches(text string) bool { return r.re.MatchString(text) }

// Threshold fires when its inner matcher hit at least Count times within
// Window, counting the current text. Hits older than Window are forgotten.
type Threshold struct {
	inner  Matcher
	count  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits []time.Time
}

type ThresholdOption func(*Threshold)

// WithClock overrides the time source used for the sliding window.
func WithClock(now func() time.Time) ThresholdOption {
	return func(t *Threshold) { t.now = now }
}

func NewThreshold(inner Matcher, count int, window time.Duration, opts ...ThresholdOption) *Threshold {
	if count < 1 {
		count = 1
	}
	t := &Threshold{inner: inner, count: count, window: window, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Threshold) Matches(text string) bool {
	if !t.inner.Matches(text) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.window)
	kept := t.hits[:0]
	for _, h := range t.hits {
		if h.After(cutoff) {
			kept = append(kept, h)
		}
	}
	t.hits = append(kept, now)
	return len(t.hits) >= t.count
}
