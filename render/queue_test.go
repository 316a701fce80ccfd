package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type slowRenderer struct {
	mu       sync.Mutex
	delays   map[string]time.Duration
	order    []string
	inFlight int
	maxSeen  int
}

func (r *slowRenderer) Render(_ context.Context, req Request) (string, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	r.order = append(r.order, req.VehicleID)
	delay := r.delays[req.VehicleID]
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return "https://cdn.example/" + req.VehicleID + ".jpg", nil
}

func TestQueue_SerializesRequests(t *testing.T) {
	renderer := &slowRenderer{delays: map[string]time.Duration{
		"a": 20 * time.Millisecond,
		"b": 20 * time.Millisecond,
		"c": 20 * time.Millisecond,
	}}
	q := NewQueue(renderer, time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			url, err := q.Enqueue(ctx, Request{VehicleID: id, TemplateID: "t"})
			if err != nil {
				t.Errorf("enqueue %s: %v", id, err)
			}
			if url != "https://cdn.example/"+id+".jpg" {
				t.Errorf("unexpected url %s", url)
			}
		}(id)
	}
	wg.Wait()

	if renderer.maxSeen != 1 {
		t.Fatalf("expected at most 1 render in flight, saw %d", renderer.maxSeen)
	}
	if len(renderer.order) != 3 {
		t.Fatalf("expected 3 renders, got %d", len(renderer.order))
	}
}

func TestQueue_TimeoutDoesNotBlockLaterEntries(t *testing.T) {
	renderer := &slowRenderer{delays: map[string]time.Duration{
		"slow": 200 * time.Millisecond,
	}}
	q := NewQueue(renderer, time.Millisecond, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	// The slow render outlives the caller's deadline.
	_, err := q.Enqueue(ctx, Request{VehicleID: "slow", TemplateID: "t"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for slow request, got %v", err)
	}

	// The abandoned result must not wedge the drain loop.
	url, err := q.Enqueue(ctx, Request{VehicleID: "fast", TemplateID: "t"})
	if err != nil {
		t.Fatalf("fast request failed: %v", err)
	}
	if url != "https://cdn.example/fast.jpg" {
		t.Fatalf("unexpected url %s", url)
	}

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if len(renderer.order) != 2 || renderer.order[0] != "slow" || renderer.order[1] != "fast" {
		t.Fatalf("unexpected render order %v", renderer.order)
	}
}

func TestQueue_CancelledContext(t *testing.T) {
	q := NewQueue(&slowRenderer{}, time.Millisecond, time.Second)
	// Queue never started: Enqueue must still respect cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Enqueue(ctx, Request{VehicleID: "x", TemplateID: "t"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSignedRenderLink_Deterministic(t *testing.T) {
	req := Request{
		TemplateID: "tpl-1",
		Modifications: map[string]string{
			"headline": "VW Golf",
			"price":    "149900",
		},
	}

	first := SignedRenderLink("secret", req)
	second := SignedRenderLink("secret", req)
	if first != second {
		t.Fatalf("same request signed differently:\n%s\n%s", first, second)
	}
	if !strings.Contains(first, "/templates/tpl-1/render.jpg?") {
		t.Fatalf("unexpected render path in %s", first)
	}
	if !strings.Contains(first, "&sig=") {
		t.Fatalf("missing signature in %s", first)
	}
}

func TestSignedRenderLink_KeyChangesSignature(t *testing.T) {
	req := Request{TemplateID: "tpl-1", Modifications: map[string]string{"headline": "VW Golf"}}

	if SignedRenderLink("key-a", req) == SignedRenderLink("key-b", req) {
		t.Fatalf("different keys produced identical signatures")
	}
}
