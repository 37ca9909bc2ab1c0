package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// Event is a lifecycle notification for one student.
type Event struct {
	Kind          string
	BeneficiaryID string
	GrantID       string
	Detail        string
	OccurredAt    time.Time
}

// GrantNotifier is the sink the application wiring feeds lifecycle
// events into.
type GrantNotifier interface {
	Notify(ctx context.Context, event Event)
}

// Clock provides time for the dedupe window.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders lifecycle events and sends them through a channel.
// Identical notifications inside the dedupe window are suppressed.
type Notifier struct {
	channel      Channel
	template     *Template
	clock        Clock
	dedupeWindow time.Duration

	mu   sync.Mutex
	sent map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithTemplate overrides the default message template.
func WithTemplate(tpl *Template) Option {
	return func(n *Notifier) {
		if tpl != nil {
			n.template = tpl
		}
	}
}

// NewNotifier constructs a notifier for a channel.
func NewNotifier(channel Channel, opts ...Option) *Notifier {
	n := &Notifier{
		channel:      channel,
		template:     DefaultTemplate(),
		clock:        systemClock{},
		dedupeWindow: time.Minute,
		sent:         make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify renders and sends one event. Delivery failures are logged, not
// returned: a broken webhook must never fail a grant transition.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(event)
	if err != nil {
		log.Printf("grant notify: render %s: %v", event.Kind, err)
		return
	}

	key := event.Kind + "|" + event.BeneficiaryID + "|" + event.GrantID
	sum := sha1.Sum([]byte(content))
	hash := hex.EncodeToString(sum[:])

	n.mu.Lock()
	if rec, ok := n.sent[key]; ok && rec.hash == hash && n.clock.Now().Sub(rec.at) < n.dedupeWindow {
		n.mu.Unlock()
		return
	}
	n.sent[key] = sendRecord{at: n.clock.Now(), hash: hash}
	n.mu.Unlock()

	if err := n.channel.Send(ctx, content); err != nil {
		log.Printf("grant notify: send %s: %v", event.Kind, err)
	}
}

// MultiNotifier dispatches lifecycle events to multiple notifiers.
type MultiNotifier struct {
	notifiers []GrantNotifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...GrantNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the event to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}
