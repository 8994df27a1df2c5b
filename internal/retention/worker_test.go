package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/nudge/internal/storage"
)

type countingPruner struct {
	calls atomic.Int64
	err   error
}

func (p *countingPruner) Prune(context.Context) (storage.PruneStats, error) {
	p.calls.Add(1)
	return storage.PruneStats{Events: 2, Actions: 1}, p.err
}

func TestRunOnce(t *testing.T) {
	p := &countingPruner{}
	w := NewWorker(p, time.Hour, nil)

	w.RunOnce(context.Background())
	if got := p.calls.Load(); got != 1 {
		t.Errorf("prune calls = %d, want 1", got)
	}
}

func TestRunOnceToleratesError(t *testing.T) {
	p := &countingPruner{err: errors.New("db closed")}
	w := NewWorker(p, time.Hour, nil)

	// Must not panic and must not propagate.
	w.RunOnce(context.Background())
	if got := p.calls.Load(); got != 1 {
		t.Errorf("prune calls = %d, want 1", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := &countingPruner{}
	w := NewWorker(p, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
	if p.calls.Load() == 0 {
		t.Error("expected at least one prune pass before cancellation")
	}
}

func TestNewWorkerDefaultInterval(t *testing.T) {
	w := NewWorker(&countingPruner{}, 0, nil)
	if w.interval != time.Hour {
		t.Errorf("interval = %v, want 1h default", w.interval)
	}
}
