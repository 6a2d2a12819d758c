package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSweeperRunsOnInterval(t *testing.T) {
	sweeper := NewSweeper()
	var runs atomic.Int64
	err := sweeper.Add(Sweep{
		Name:       "counter",
		Interval:   10 * time.Millisecond,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := sweeper.Stop(time.Second); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
}

func TestSweeperRecordsErrors(t *testing.T) {
	sweeper := NewSweeper()
	err := sweeper.Add(Sweep{
		Name:       "flaky",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			return errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status := sweeper.Status()
		if len(status) == 1 && status[0].Runs > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := sweeper.Stop(time.Second); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	status := sweeper.Status()
	if len(status) != 1 || status[0].LastError != "boom" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSweeperRejectsBadSweeps(t *testing.T) {
	sweeper := NewSweeper()
	if err := sweeper.Add(Sweep{Interval: time.Second, Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if err := sweeper.Add(Sweep{Name: "x", Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for missing interval")
	}
	if err := sweeper.Add(Sweep{Name: "x", Interval: time.Second}); err == nil {
		t.Fatal("expected error for missing callback")
	}

	ok := Sweep{Name: "x", Interval: time.Second, Run: func(ctx context.Context) error { return nil }}
	if err := sweeper.Add(ok); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := sweeper.Add(ok); err == nil {
		t.Fatal("expected error for duplicate name")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sweeper.Stop(time.Second)

	if err := sweeper.Add(Sweep{Name: "late", Interval: time.Second, Run: func(ctx context.Context) error { return nil }}); !errors.Is(err, ErrSweeperStarted) {
		t.Fatalf("expected ErrSweeperStarted, got %v", err)
	}
	if err := sweeper.Start(ctx); !errors.Is(err, ErrSweeperStarted) {
		t.Fatalf("expected ErrSweeperStarted on double start, got %v", err)
	}
}
