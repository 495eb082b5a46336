package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	runs    int
}

func (r *blockingRunner) RunCycle(ctx context.Context) error {
	r.runs++
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	return nil
}

type fakeRetention struct {
	deleted   int64
	err       error
	calls     int
	olderThan time.Duration
}

func (f *fakeRetention) DeleteOldTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.calls++
	f.olderThan = olderThan
	return f.deleted, f.err
}

func newTestScheduler(runner CycleRunner, retention RetentionStore) *Scheduler {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewScheduler(runner, retention, logger, time.Hour, time.Hour)
}

func TestRunDeliveryCycle_Runs(t *testing.T) {
	runner := &blockingRunner{}
	s := newTestScheduler(runner, &fakeRetention{})

	if !s.runDeliveryCycle(context.Background()) {
		t.Error("cycle should run when nothing is in flight")
	}
	if runner.runs != 1 {
		t.Errorf("expected 1 run, got %d", runner.runs)
	}
}

func TestRunDeliveryCycle_OverlappingInvocationIsNoOp(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestScheduler(runner, &fakeRetention{})

	done := make(chan bool)
	go func() {
		done <- s.runDeliveryCycle(context.Background())
	}()

	<-runner.started

	// A second invocation while the first is still in flight must not run
	if s.runDeliveryCycle(context.Background()) {
		t.Error("overlapping cycle should be a no-op")
	}

	close(runner.release)
	if !<-done {
		t.Error("first cycle should have run")
	}
	if runner.runs != 1 {
		t.Errorf("expected exactly 1 run, got %d", runner.runs)
	}
}

func TestRunDeliveryCycle_GuardReleasedAfterRun(t *testing.T) {
	runner := &blockingRunner{}
	s := newTestScheduler(runner, &fakeRetention{})

	s.runDeliveryCycle(context.Background())
	if !s.runDeliveryCycle(context.Background()) {
		t.Error("guard should be released once the previous cycle finished")
	}
	if runner.runs != 2 {
		t.Errorf("expected 2 runs, got %d", runner.runs)
	}
}

func TestRunSweep_UsesRetentionWindow(t *testing.T) {
	retention := &fakeRetention{deleted: 7}
	s := newTestScheduler(&blockingRunner{}, retention)

	s.runSweep(context.Background())

	if retention.calls != 1 {
		t.Fatalf("expected 1 sweep call, got %d", retention.calls)
	}
	if retention.olderThan != 7*24*time.Hour {
		t.Errorf("expected 7 day window, got %v", retention.olderThan)
	}
}

func TestRunSweep_ErrorDoesNotPanic(t *testing.T) {
	retention := &fakeRetention{err: errors.New("db down")}
	s := newTestScheduler(&blockingRunner{}, retention)

	s.runSweep(context.Background())

	if retention.calls != 1 {
		t.Errorf("expected sweep to be attempted, got %d calls", retention.calls)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	runner := &blockingRunner{}
	s := newTestScheduler(runner, &fakeRetention{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	// The first cycle runs immediately on start
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}

	if runner.runs != 1 {
		t.Errorf("expected the immediate first cycle, got %d runs", runner.runs)
	}
}
