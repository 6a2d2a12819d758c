package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/pkg/logger"
)

var ErrSweeperStarted = errors.New("maintenance: sweeper already started")

// Sweep is a named background pass run on a fixed interval.
type Sweep struct {
	Name       string
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
	Run        func(context.Context) error
}

// SweepStatus is the last observed outcome of one sweep.
type SweepStatus struct {
	Name         string
	Runs         int64
	LastRunAt    time.Time
	LastDuration time.Duration
	LastError    string
}

// Sweeper runs registered sweeps until its context is canceled. All sweeps
// must be added before Start.
type Sweeper struct {
	mu      sync.Mutex
	sweeps  []Sweep
	status  map[string]SweepStatus
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSweeper() *Sweeper {
	return &Sweeper{status: make(map[string]SweepStatus)}
}

func (s *Sweeper) Add(sweep Sweep) error {
	if sweep.Name == "" {
		return errors.New("maintenance: sweep name is required")
	}
	if sweep.Interval <= 0 {
		return errors.New("maintenance: sweep interval must be greater than zero")
	}
	if sweep.Run == nil {
		return errors.New("maintenance: sweep run callback is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSweeperStarted
	}
	for _, existing := range s.sweeps {
		if existing.Name == sweep.Name {
			return fmt.Errorf("maintenance: duplicate sweep %s", sweep.Name)
		}
	}
	s.sweeps = append(s.sweeps, sweep)
	s.status[sweep.Name] = SweepStatus{Name: sweep.Name}
	return nil
}

func (s *Sweeper) Start(parent context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSweeperStarted
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.started = true
	sweeps := append([]Sweep(nil), s.sweeps...)
	s.mu.Unlock()

	for _, sweep := range sweeps {
		s.wg.Add(1)
		go s.loop(ctx, sweep)
	}
	return nil
}

func (s *Sweeper) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()

	cancel()
	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("maintenance: stop timeout after %s", timeout)
	}
}

// Status returns sweeps in registration order.
func (s *Sweeper) Status() []SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]SweepStatus, 0, len(s.sweeps))
	for _, sweep := range s.sweeps {
		items = append(items, s.status[sweep.Name])
	}
	return items
}

func (s *Sweeper) loop(ctx context.Context, sweep Sweep) {
	defer s.wg.Done()
	if sweep.RunOnStart {
		s.runOnce(ctx, sweep)
	}
	ticker := time.NewTicker(sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, sweep)
		}
	}
}

func (s *Sweeper) runOnce(parent context.Context, sweep Sweep) {
	runCtx := parent
	cancel := func() {}
	if sweep.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(parent, sweep.Timeout)
	}
	defer cancel()

	start := time.Now()
	err := sweep.Run(runCtx)
	s.record(sweep.Name, start, time.Since(start), err)
	if err != nil {
		logger.Error("sweep %s failed: %v", sweep.Name, err)
	}
}

func (s *Sweeper) record(name string, at time.Time, duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[name]
	st.Name = name
	st.Runs++
	st.LastRunAt = at
	st.LastDuration = duration
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	s.status[name] = st
}

// OverdueSweep logs, per owner, how many open tasks have slipped past their
// due date. Purely informational; it never mutates the board.
func OverdueSweep(tasks *task.Store) Sweep {
	return Sweep{
		Name:       "overdue-scan",
		Interval:   time.Hour,
		Timeout:    20 * time.Second,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			counts, err := tasks.CountOverdueByOwner(ctx, time.Now().Unix())
			if err != nil {
				return err
			}
			for _, c := range counts {
				logger.Info("overdue-scan owner=%d overdue=%d", c.OwnerID, c.Count)
			}
			return nil
		},
	}
}
