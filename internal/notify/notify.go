package notify

import (
	"context"
	"log/slog"
	"sync"
)

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Notification is a short user-facing message.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// Notifier delivers notifications fire-and-forget. Implementations must not
// block the caller on slow sinks for longer than the context allows and never
// report failures back.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, Notification) {})

type multi []Notifier

// Multi fans a notification out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// LogNotifier writes notifications as structured log records.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Variant == VariantDestructive {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification",
		"title", n.Title,
		"description", n.Description,
	)
}

// Collector gathers the notifications raised while serving one request.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

type collectorKey struct{}

// Collect attaches a fresh Collector to ctx. Notifications sent through
// Context with the returned context end up in the collector.
func Collect(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func (c *Collector) add(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

// Items returns the collected notifications, never nil.
func (c *Collector) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Context delivers to the Collector attached to the call's context, if any.
var Context Notifier = Func(func(ctx context.Context, n Notification) {
	if c, ok := ctx.Value(collectorKey{}).(*Collector); ok {
		c.add(n)
	}
})
