// Package engine provides the serialized tick loop that owns all mutation of
// a player's state. Periodic tasks and external actions are queued onto one
// consumer goroutine and run to completion one at a time.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default periodic intervals.
const (
	RegenInterval   = time.Second
	PassiveInterval = time.Second
	SyncInterval    = 2 * time.Second
)

var (
	// ErrStopped is returned when work is submitted to a loop that has exited.
	ErrStopped = errors.New("engine stopped")
	// ErrRunning is returned by a second call to Run.
	ErrRunning = errors.New("engine already running")
)

// Clock abstracts wall time so tests can drive the loop deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Job is a unit of work run on the loop goroutine.
type Job func(now time.Time)

type schedule struct {
	name     string
	interval time.Duration
	job      Job
}

type queued struct {
	name string
	job  Job
	done chan struct{}
}

// Loop drives periodic tasks and serializes every state mutation.
type Loop struct {
	clock     Clock
	log       *slog.Logger
	jobs      chan queued
	schedules []schedule

	paused  atomic.Bool
	running atomic.Bool
	ticks   atomic.Uint64

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewLoop creates a loop. A nil clock uses SystemClock and a nil logger
// uses slog.Default.
func NewLoop(clock Clock, log *slog.Logger) *Loop {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		clock:   clock,
		log:     log,
		jobs:    make(chan queued),
		stopped: make(chan struct{}),
	}
}

// Every registers a periodic job. It must be called before Run.
func (l *Loop) Every(name string, interval time.Duration, job Job) {
	l.schedules = append(l.schedules, schedule{name: name, interval: interval, job: job})
}

// Now returns the loop clock's time.
func (l *Loop) Now() time.Time { return l.clock.Now() }

// SetPaused suspends periodic jobs. Ticks that fire while paused are
// dropped, not queued. Jobs submitted with Do or Post still run.
func (l *Loop) SetPaused(paused bool) {
	if l.paused.Swap(paused) != paused {
		l.log.Debug("engine pause changed", "paused", paused)
	}
}

// Paused reports whether periodic jobs are suspended.
func (l *Loop) Paused() bool { return l.paused.Load() }

// Ticks returns how many periodic jobs have run.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.stopped }

// Run starts one ticker goroutine per schedule plus the consumer, and blocks
// until ctx is cancelled. A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.stopOnce.Do(func() { close(l.stopped) })

	l.log.Info("engine started", "schedules", len(l.schedules))

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range l.schedules {
		g.Go(func() error { return l.tick(gctx, s) })
	}
	g.Go(func() error { return l.consume(gctx) })
	err := g.Wait()

	l.log.Info("engine stopped", "ticks", l.ticks.Load())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (l *Loop) tick(ctx context.Context, s schedule) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if l.paused.Load() {
				continue
			}
			select {
			case l.jobs <- queued{name: s.name, job: s.job}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (l *Loop) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-l.jobs:
			// A tick queued just before pausing is dropped here.
			if q.done == nil && l.paused.Load() {
				continue
			}
			q.job(l.clock.Now())
			if q.done != nil {
				close(q.done)
			} else {
				l.ticks.Add(1)
			}
		}
	}
}

// Do runs job on the loop and waits for it to finish. It blocks until Run is
// consuming. ctx bounds only the wait for the loop to accept the job: once
// accepted, Do waits for the job to complete, so a nil error means job ran
// and any error means it did not.
func (l *Loop) Do(ctx context.Context, job Job) error {
	q := queued{job: job, done: make(chan struct{})}
	select {
	case l.jobs <- q:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrStopped
	}
	<-q.done
	return nil
}

// Post hands job to the loop without waiting for it to run. Background I/O
// goroutines use it to deliver results. It reports false if the loop has
// stopped.
func (l *Loop) Post(job Job) bool {
	q := queued{job: job, done: make(chan struct{})}
	select {
	case l.jobs <- q:
		return true
	case <-l.stopped:
		return false
	}
}
