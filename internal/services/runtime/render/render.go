// Package render drives the per-frame hooks of live operators without a window.
package render

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/louisbranch/arkomp/pkg/operator"
)

// MaxFrameRate is the highest accepted frame rate.
const MaxFrameRate = 1000

// Source iterates the live operators.
type Source interface {
	Each(fn func(operator.Operator))
}

// Loop calls Render then UpdateAnimation on every live operator at a fixed rate.
// It only reads the operator set; membership is changed by commands alone.
type Loop struct {
	source   Source
	interval time.Duration
	frames   atomic.Uint64
}

// NewLoop returns a loop running at fps frames per second.
func NewLoop(source Source, fps int) (*Loop, error) {
	if source == nil {
		return nil, fmt.Errorf("operator source is required")
	}
	if fps <= 0 {
		return nil, fmt.Errorf("frame rate must be greater than zero")
	}
	if fps > MaxFrameRate {
		return nil, fmt.Errorf("frame rate %d exceeds %d", fps, MaxFrameRate)
	}
	return &Loop{source: source, interval: time.Second / time.Duration(fps)}, nil
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Tick(now.Sub(last))
			last = now
		}
	}
}

// Tick renders one frame.
func (l *Loop) Tick(delta time.Duration) {
	frame := operator.Frame{Number: l.frames.Add(1), Delta: delta}
	l.source.Each(func(op operator.Operator) {
		op.Render(frame)
		op.UpdateAnimation(frame)
	})
}

// Frames returns the number of frames rendered so far.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}
