// Package scheduler runs the server's periodic maintenance jobs: the
// invitation and refresh-token sweep and the daily dues reminder run.
//
// Every job waits on its own goroutine for its next run time. A job is
// never run concurrently with itself; a tick that arrives while the
// previous run is still going is skipped and logged.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/timex"
)

// NextFunc returns the next run time strictly after now.
type NextFunc func(now time.Time) time.Time

// Every schedules a job at a fixed interval.
func Every(d time.Duration) NextFunc {
	return func(now time.Time) time.Time { return now.Add(d) }
}

// Daily schedules a job once a day at hour:00 in loc.
func Daily(hour int, loc *time.Location) NextFunc {
	return func(now time.Time) time.Time { return timex.NextDailyRun(now, hour, loc) }
}

// Observer receives the outcome of every job run.
type Observer interface {
	ObserveJob(name string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveJob(string, time.Duration, error) {}

type job struct {
	name    string
	next    NextFunc
	run     func(ctx context.Context) error
	running atomic.Bool
}

type Scheduler struct {
	jobs     []*job
	log      logging.Logger
	observer Observer
	wg       sync.WaitGroup

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func New(l logging.Logger, o Observer) *Scheduler {
	if l == nil {
		l = logging.Nop{}
	}
	if o == nil {
		o = nopObserver{}
	}
	return &Scheduler{
		log:      l.With("module", "scheduler"),
		observer: o,
		now:      time.Now,
		after:    time.After,
	}
}

// Add registers a job. It must be called before Run.
func (s *Scheduler) Add(name string, next NextFunc, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, &job{name: name, next: next, run: run})
}

// Run starts every job and blocks until ctx is cancelled and all in-flight
// runs have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var loops sync.WaitGroup
	for _, j := range s.jobs {
		loops.Add(1)
		go func(j *job) {
			defer loops.Done()
			s.loop(ctx, j)
		}(j)
	}
	loops.Wait()
	s.wg.Wait()
	s.log.Info(ctx, "scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	for {
		now := s.now()
		at := j.next(now)
		s.log.Debug(ctx, "next run scheduled", "job", j.name, "at", at)

		select {
		case <-ctx.Done():
			return
		case <-s.after(at.Sub(now)):
		}
		s.trigger(ctx, j)
	}
}

// trigger starts one run of j unless the previous one is still going.
// It reports whether a run was started.
func (s *Scheduler) trigger(ctx context.Context, j *job) bool {
	if !j.running.CompareAndSwap(false, true) {
		s.log.Warn(ctx, "previous run still in progress, skipping", "job", j.name)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)
		s.execute(ctx, j)
	}()
	return true
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	start := s.now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error(ctx, "job panicked", "job", j.name, "panic", r, "stack", string(debug.Stack()))
		}
		s.observer.ObserveJob(j.name, s.now().Sub(start), err)
	}()

	err = j.run(ctx)
	if err != nil {
		s.log.Error(ctx, "job failed", "job", j.name, "error", err)
		return
	}
	s.log.Info(ctx, "job finished", "job", j.name, "took", s.now().Sub(start))
}
