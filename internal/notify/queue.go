// Package notify holds the process-wide list of transient notifications.
//
// Each notification removes itself after a TTL unless it is dismissed
// first. Pushes and removals are published on the event bus so SSE clients
// and NATS subscribers see the same list the queue holds.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/clock"
	"github.com/alfredjeanlab/chainreg/internal/events"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 8 * time.Second

// Queue is an ordered set of self-expiring notifications.
type Queue struct {
	clk       clock.Clock
	ttl       time.Duration
	publisher events.Publisher
	logger    *slog.Logger

	mu     sync.Mutex
	items  []*entry
	lastID int64
}

type entry struct {
	n     model.Notification
	timer clock.Timer
}

// New creates a Queue. A zero ttl uses DefaultTTL.
func New(clk clock.Clock, ttl time.Duration, publisher events.Publisher, logger *slog.Logger) *Queue {
	if clk == nil {
		clk = clock.Real()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{clk: clk, ttl: ttl, publisher: publisher, logger: logger}
}

// Push appends a notification and schedules its expiry.
func (q *Queue) Push(kind model.NotificationKind, title, message, reference string) model.Notification {
	now := q.clk.Now()

	q.mu.Lock()
	id := now.UnixNano()
	if id <= q.lastID {
		id = q.lastID + 1
	}
	q.lastID = id
	e := &entry{n: model.Notification{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		Reference: reference,
		CreatedAt: now.UTC(),
	}}
	q.items = append(q.items, e)
	e.timer = q.clk.AfterFunc(q.ttl, func() { q.expire(id) })
	q.mu.Unlock()

	q.publish(events.TopicNotificationPushed, events.NotificationPushed{Notification: e.n})
	return e.n
}

// Dismiss removes a notification. It reports false when id is unknown or
// has already expired.
func (q *Queue) Dismiss(id int64) bool {
	e := q.remove(id)
	if e == nil {
		return false
	}
	e.timer.Stop()
	q.publish(events.TopicNotificationDismissed, events.NotificationDismissed{ID: id})
	return true
}

// List returns the live notifications in insertion order.
func (q *Queue) List() []model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Notification, len(q.items))
	for i, e := range q.items {
		out[i] = e.n
	}
	return out
}

// Len returns the number of live notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) expire(id int64) {
	if q.remove(id) == nil {
		return
	}
	q.publish(events.TopicNotificationExpired, events.NotificationExpired{ID: id})
}

// remove deletes id and returns its entry, or nil if it is already gone.
func (q *Queue) remove(id int64) *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.items {
		if e.n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return e
		}
	}
	return nil
}

func (q *Queue) publish(topic string, event any) {
	if err := q.publisher.Publish(context.Background(), topic, event); err != nil {
		q.logger.Warn("publish notification event", "topic", topic, "err", err)
	}
}
