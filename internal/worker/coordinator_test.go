package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeDependency becomes READY after readyAfter status polls once started.
type fakeDependency struct {
	mu         sync.Mutex
	status     Status
	starts     int
	polls      int
	readyAfter int
	statusErr  error
	startErr   error
}

func (f *fakeDependency) Status(context.Context, string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.status == StatusInitializing {
		f.polls++
		if f.polls >= f.readyAfter {
			f.status = StatusReady
		}
	}
	return f.status, nil
}

func (f *fakeDependency) Start(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.status = StatusInitializing
	return nil
}

func TestCoordinatorStartsIdleDependency(t *testing.T) {
	dep := &fakeDependency{status: StatusIdle, readyAfter: 3}
	c := NewCoordinator(dep, 5*time.Millisecond, zerolog.Nop())
	if err := c.EnsureReady(context.Background(), "tok"); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if dep.starts != 1 {
		t.Fatalf("starts = %d, want 1", dep.starts)
	}
	if dep.polls < 3 {
		t.Fatalf("polls = %d", dep.polls)
	}
}

func TestCoordinatorDoesNotRestartInitializing(t *testing.T) {
	dep := &fakeDependency{status: StatusInitializing, readyAfter: 2}
	c := NewCoordinator(dep, 5*time.Millisecond, zerolog.Nop())
	if err := c.EnsureReady(context.Background(), "tok"); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if dep.starts != 0 {
		t.Fatalf("starts = %d, want 0", dep.starts)
	}
}

func TestCoordinatorErrors(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewCoordinator(&fakeDependency{statusErr: boom}, 0, zerolog.Nop())
	if err := c.EnsureReady(context.Background(), "tok"); !errors.Is(err, boom) {
		t.Fatalf("status error: got %v", err)
	}
	c = NewCoordinator(&fakeDependency{status: StatusIdle, startErr: boom}, 0, zerolog.Nop())
	if err := c.EnsureReady(context.Background(), "tok"); !errors.Is(err, boom) {
		t.Fatalf("start error: got %v", err)
	}
}

func TestCoordinatorHonorsContext(t *testing.T) {
	dep := &fakeDependency{status: StatusInitializing, readyAfter: 1 << 30}
	c := NewCoordinator(dep, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.EnsureReady(ctx, "tok"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestCoordinatorDefaultInterval(t *testing.T) {
	c := NewCoordinator(&fakeDependency{}, 0, zerolog.Nop())
	if c.interval != DefaultPollInterval {
		t.Fatalf("interval = %s", c.interval)
	}
}
