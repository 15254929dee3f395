package updatemanager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/client/internal/updatemanager/status"
)

// Outcome is delivered once per check started by a Runner
type Outcome struct {
	Result
	Err error
}

// Runner executes checks on a background goroutine, one at a time
type Runner struct {
	manager  *Manager
	observer status.Observer

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewRunner(manager *Manager, observer status.Observer) *Runner {
	return &Runner{
		manager:  manager,
		observer: observer,
	}
}

// Start runs a check of exePath in the background. The returned channel receives exactly one Outcome and is then closed.
// ErrCheckInProgress is returned while a previous check has not finished.
func (r *Runner) Start(ctx context.Context, exePath string) (<-chan Outcome, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrCheckInProgress
	}

	done := make(chan Outcome, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)

		res, err := r.manager.Check(ctx, exePath, r.observer)
		r.running.Store(false)
		done <- Outcome{Result: res, Err: err}
	}()

	return done, nil
}

// Observer returns the observer receiving the status of the checks
func (r *Runner) Observer() status.Observer {
	return status.OrDiscard(r.observer)
}

// Running reports whether a check is in flight
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Wait blocks until the running check, if any, has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Watch checks exePath now and then every interval until a payload has been downloaded or ctx is done.
// Failed checks are already reported to the observer and are retried on the next tick.
// A non-positive interval runs a single check.
func (r *Runner) Watch(ctx context.Context, exePath string, interval time.Duration) (Result, error) {
	var ticks <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		done, err := r.Start(ctx, exePath)
		if err != nil {
			return Result{}, err
		}

		out := <-done
		if out.Err == nil && out.UpdateAvailable {
			return out.Result, nil
		}
		if ticks == nil {
			return out.Result, out.Err
		}
		if out.Err != nil {
			log.Debugf("check failed, retrying in %s", interval)
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticks:
		}
	}
}
