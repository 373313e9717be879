// Package status is the ephemeral user-facing feedback channel. Messages
// auto-clear after a fixed delay and a newer message always supersedes a
// pending clear from an older one.
package status

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultClearDelay is how long a message stays visible.
const DefaultClearDelay = 3 * time.Second

// Severity only affects presentation, never control flow.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityError
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Message is a transient display entry. The zero value means nothing is
// displayed.
type Message struct {
	Text     string
	Severity Severity
}

// Sink receives display updates from the reporter.
type Sink interface {
	Display(msg Message)
	Clear()
}

// SinkFunc adapts a function to the Sink interface; a zero message signals
// a clear.
type SinkFunc func(msg Message, visible bool)

// Display implements Sink.
func (f SinkFunc) Display(msg Message) { f(msg, true) }

// Clear implements Sink.
func (f SinkFunc) Clear() { f(Message{}, false) }

// Option configures the reporter.
type Option func(*Reporter)

// WithClearDelay overrides the auto-clear delay.
func WithClearDelay(d time.Duration) Option {
	return func(r *Reporter) { r.delay = d }
}

// Reporter displays one message at a time. Each Notify replaces the current
// message immediately and schedules a clear; the schedule is tagged with a
// token so that a clear fired for a superseded message is ignored.
type Reporter struct {
	sink   Sink
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	token   uint64
	timer   *time.Timer
	current Message
	visible bool
}

// NewReporter builds a reporter over the given sink.
func NewReporter(sink Sink, logger zerolog.Logger, opts ...Option) *Reporter {
	r := &Reporter{sink: sink, delay: DefaultClearDelay, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notify displays the message, replacing whatever is currently shown, and
// schedules its clear.
func (r *Reporter) Notify(text string, severity Severity) {
	r.mu.Lock()
	r.token++
	token := r.token
	if r.timer != nil {
		r.timer.Stop()
	}
	r.current = Message{Text: text, Severity: severity}
	r.visible = true
	r.timer = time.AfterFunc(r.delay, func() { r.clear(token) })
	msg := r.current
	r.mu.Unlock()

	r.logger.Debug().Str("severity", severity.String()).Str("message", text).Msg("status displayed")
	r.sink.Display(msg)
}

// Current returns the displayed message and whether one is visible.
func (r *Reporter) Current() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.visible
}

// Stop cancels any pending clear without touching the display.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reporter) clear(token uint64) {
	r.mu.Lock()
	if token != r.token {
		// A newer message owns the display now.
		r.mu.Unlock()
		return
	}
	r.current = Message{}
	r.visible = false
	r.timer = nil
	r.mu.Unlock()

	r.sink.Clear()
}
