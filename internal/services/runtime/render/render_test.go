package render

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/arkomp/pkg/event"
	"github.com/louisbranch/arkomp/pkg/operator"
)

type tracingOperator struct {
	mu    sync.Mutex
	calls []string
	last  operator.Frame
}

func (o *tracingOperator) ID() string              { return "crow" }
func (o *tracingOperator) StartAnimation(string)   {}
func (o *tracingOperator) HandleEvent(event.Event) {}

func (o *tracingOperator) Render(f operator.Frame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "render")
	o.last = f
}

func (o *tracingOperator) UpdateAnimation(operator.Frame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "update")
}

func (o *tracingOperator) snapshot() ([]string, operator.Frame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...), o.last
}

type staticSource []operator.Operator

func (s staticSource) Each(fn func(operator.Operator)) {
	for _, op := range s {
		fn(op)
	}
}

func TestNewLoopValidation(t *testing.T) {
	if _, err := NewLoop(nil, 60); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewLoop(staticSource{}, 0); err == nil {
		t.Fatal("expected error for zero frame rate")
	}
	if _, err := NewLoop(staticSource{}, MaxFrameRate+1); err == nil {
		t.Fatal("expected error for frame rate above the cap")
	}
	if _, err := NewLoop(staticSource{}, math.MaxInt); err == nil {
		t.Fatal("expected error for huge frame rate")
	}
	loop, err := NewLoop(staticSource{}, MaxFrameRate)
	if err != nil {
		t.Fatalf("new loop at cap: %v", err)
	}
	if loop.interval != time.Millisecond {
		t.Fatalf("interval = %v, want 1ms", loop.interval)
	}
}

func TestTickRendersThenUpdates(t *testing.T) {
	op := &tracingOperator{}
	loop, err := NewLoop(staticSource{op}, 60)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	loop.Tick(16 * time.Millisecond)
	loop.Tick(17 * time.Millisecond)

	calls, last := op.snapshot()
	want := []string{"render", "update", "render", "update"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
	if last.Number != 2 || last.Delta != 17*time.Millisecond {
		t.Fatalf("last frame = %+v", last)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	op := &tracingOperator{}
	loop, err := NewLoop(staticSource{op}, 200)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for loop.Frames() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
