package daemon

import (
	"log/slog"
	"sync"

	"github.com/runger/cadence/internal/event"
)

// IngestionQueue is a bounded FIFO of wire events between the socket readers
// and the dispatcher. When full it drops the oldest events: a fresher
// keystroke or snapshot is always worth more than a stale one. A warning is
// logged when the queue crosses 75% capacity.
type IngestionQueue struct {
	mu            sync.Mutex
	events        []*event.Event
	maxSize       int
	logger        *slog.Logger
	warnThreshold int
	warned        bool
	totalDropped  int64
	totalEnqueued int64
	wake          chan struct{} // 1-buffered dispatcher wakeup
}

// NewIngestionQueue creates a queue with the specified capacity.
// maxSize <= 0 defaults to 4096.
func NewIngestionQueue(maxSize int, logger *slog.Logger) *IngestionQueue {
	if maxSize <= 0 {
		maxSize = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionQueue{
		events:        make([]*event.Event, 0, maxSize),
		maxSize:       maxSize,
		logger:        logger,
		warnThreshold: (maxSize * 3) / 4,
		wake:          make(chan struct{}, 1),
	}
}

// Enqueue adds an event, dropping the oldest one first when full. Reports
// whether a drop happened.
func (q *IngestionQueue) Enqueue(ev *event.Event) bool {
	q.mu.Lock()

	dropped := false
	if len(q.events) >= q.maxSize {
		q.events = q.events[1:]
		q.totalDropped++
		dropped = true
		q.logger.Warn("ingestion queue full, dropping oldest event",
			"queue_size", q.maxSize,
			"total_dropped", q.totalDropped,
		)
	}

	q.events = append(q.events, ev)
	q.totalEnqueued++

	if len(q.events) >= q.warnThreshold && !q.warned {
		q.warned = true
		q.logger.Warn("ingestion queue exceeds 75% capacity",
			"current_size", len(q.events),
			"max_size", q.maxSize,
			"threshold", q.warnThreshold,
		)
	} else if len(q.events) < q.warnThreshold {
		q.warned = false
	}
	q.mu.Unlock()

	// Non-blocking wakeup: one pending signal is enough, the dispatcher
	// drains in batches.
	select {
	case q.wake <- struct{}{}:
	default:
	}

	return dropped
}

// Dequeue removes and returns the oldest event, or false when empty.
func (q *IngestionQueue) Dequeue() (*event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// DequeueN removes and returns up to n events in arrival order.
func (q *IngestionQueue) DequeueN(n int) []*event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	if n > len(q.events) {
		n = len(q.events)
	}
	batch := make([]*event.Event, n)
	copy(batch, q.events[:n])
	q.events = q.events[n:]
	return batch
}

// Wake returns the dispatcher wakeup channel. A receive means at least one
// Enqueue happened since the last drain; the dispatcher must still check Len.
func (q *IngestionQueue) Wake() <-chan struct{} {
	return q.wake
}

// Len returns the number of queued events.
func (q *IngestionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Cap returns the queue capacity.
func (q *IngestionQueue) Cap() int {
	return q.maxSize
}

// QueueStats holds queue counters for the status API.
type QueueStats struct {
	CurrentSize   int   `json:"current_size"`
	MaxSize       int   `json:"max_size"`
	TotalEnqueued int64 `json:"total_enqueued"`
	TotalDropped  int64 `json:"total_dropped"`
}

// Stats returns a snapshot of the queue counters.
func (q *IngestionQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		CurrentSize:   len(q.events),
		MaxSize:       q.maxSize,
		TotalEnqueued: q.totalEnqueued,
		TotalDropped:  q.totalDropped,
	}
}

// Clear empties the queue.
func (q *IngestionQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = q.events[:0]
	q.warned = false
}
