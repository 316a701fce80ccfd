package render

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrTimeout is returned to a caller whose render did not finish within the
// per-request deadline. The request itself is still drained to keep queue
// pacing intact; its result is discarded.
var ErrTimeout = errors.New("render request timed out")

// Renderer performs one render call plus the transfer of the ephemeral
// result into durable storage, returning the durable asset URL.
type Renderer interface {
	Render(ctx context.Context, req Request) (string, error)
}

type outcome struct {
	url string
	err error
}

type submission struct {
	req    Request
	result chan outcome
}

// Queue serializes render calls against the external service. One consumer
// goroutine drains submissions in order with a fixed inter-request delay, so
// at most one external call is in flight and throughput stays under the
// service-wide rate limit regardless of how many tenants are enqueueing.
type Queue struct {
	renderer Renderer
	requests chan submission
	delay    time.Duration
	timeout  time.Duration
}

func NewQueue(renderer Renderer, delay, timeout time.Duration) *Queue {
	if delay <= 0 {
		delay = 333 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Queue{
		renderer: renderer,
		requests: make(chan submission, 1024),
		delay:    delay,
		timeout:  timeout,
	}
}

// Start launches the single drain loop. It exits when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.drain(ctx)
}

func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-q.requests:
			url, err := q.renderer.Render(ctx, sub.req)
			// Buffered channel: a timed-out caller is gone, the send
			// still succeeds and the result is dropped with it.
			sub.result <- outcome{url: url, err: err}

			select {
			case <-ctx.Done():
				return
			case <-time.After(q.delay):
			}
		}
	}
}

// Enqueue submits a render and waits for its result. A slow external service
// fails only this caller; later queue entries are unaffected.
func (q *Queue) Enqueue(ctx context.Context, req Request) (string, error) {
	sub := submission{req: req, result: make(chan outcome, 1)}

	select {
	case q.requests <- sub:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case out := <-sub.result:
		return out.url, out.err
	case <-timer.C:
		log.Printf("Render queue: request for vehicle %s timed out after %s", req.VehicleID, q.timeout)
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Depth reports how many submissions are waiting, for observability.
func (q *Queue) Depth() int {
	return len(q.requests)
}
