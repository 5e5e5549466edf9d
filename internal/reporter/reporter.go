// Package reporter pushes high-water scores to the hosting platform's
// gradebook. Delivery is fire-and-forget: notifications are queued to a
// background worker, never block the score commit, and failures are logged
// rather than surfaced to the learner-facing flow.
package reporter

import (
	"context"
	"log"
	"sync"
	"time"

	"practice-engine/internal/domain"
)

// RecordSource reads the committed record so the worker reports the
// high-water mark as stored, not as captured at enqueue time. Re-reading
// makes delivery idempotent-safe under at-least-once semantics.
type RecordSource interface {
	Get(ctx context.Context, learnerID, assignmentID string) (*domain.ScoreRecord, error)
}

// ScoreSink is the wire client that performs the actual push (see AGSClient).
type ScoreSink interface {
	PostScore(ctx context.Context, assignmentID, learnerID string, score, max int) error
}

type notification struct {
	assignmentID string
	learnerID    string
}

// Reporter is an asynchronous grade reporter satisfying app.GradeReporter.
type Reporter struct {
	records RecordSource
	sink    ScoreSink
	timeout time.Duration

	queue chan notification
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func New(records RecordSource, sink ScoreSink, queueSize int) *Reporter {
	if queueSize <= 0 {
		queueSize = 64
	}
	r := &Reporter{
		records: records,
		sink:    sink,
		timeout: 15 * time.Second,
		queue:   make(chan notification, queueSize),
		stop:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Notify enqueues a high-water report for the pair. It never blocks: when the
// queue is full the notification is dropped with a log line, which is safe
// because the next improvement re-reports the stored maximum.
func (r *Reporter) Notify(assignmentID, learnerID string) {
	n := notification{assignmentID: assignmentID, learnerID: learnerID}
	select {
	case r.queue <- n:
	case <-r.stop:
	default:
		log.Printf("grade reporter queue full, dropping report for %s/%s", learnerID, assignmentID)
	}
}

// Close drains nothing and stops the worker; pending queue entries are
// abandoned (the platform re-learns the score on the next improvement).
func (r *Reporter) Close() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Reporter) run() {
	defer r.wg.Done()
	for {
		select {
		case n := <-r.queue:
			r.deliver(n)
		case <-r.stop:
			return
		}
	}
}

func (r *Reporter) deliver(n notification) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	rec, err := r.records.Get(ctx, n.learnerID, n.assignmentID)
	if err != nil {
		log.Printf("grade report for %s/%s skipped: %v", n.learnerID, n.assignmentID, err)
		return
	}
	if err := r.sink.PostScore(ctx, n.assignmentID, n.learnerID, rec.MaxScore, 100); err != nil {
		log.Printf("grade report for %s/%s failed: %v", n.learnerID, n.assignmentID, err)
	}
}
