package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger defines the logging interface used by the Timer.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// PostFunc hands a callback to the goroutine that owns engine state.
type PostFunc func(fn func())

// Timer runs one-shot callbacks at wall-clock times.
//
// Each At call adds a cron entry whose schedule fires once. When it
// fires the entry removes itself and the callback is passed to post,
// so callbacks run on the caller's event loop rather than on the cron
// goroutine.
//
// Thread-safe.
type Timer struct {
	cron   *cron.Cron
	post   PostFunc
	logger Logger
}

// New creates a Timer. post receives every due callback; nil runs
// callbacks on the cron goroutine.
func New(post PostFunc, logger Logger) *Timer {
	if logger == nil {
		logger = noopLogger{}
	}
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Timer{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		post:   post,
		logger: logger,
	}
}

// Start begins firing due callbacks in the background.
func (t *Timer) Start() {
	t.cron.Start()
}

// Stop halts the timer. The returned context is done once a callback
// already being handed off has finished.
func (t *Timer) Stop() context.Context {
	return t.cron.Stop()
}

// Pending returns the number of callbacks not yet fired or cancelled.
func (t *Timer) Pending() int {
	return len(t.cron.Entries())
}

// At schedules fn to run at when. A time in the past fires as soon as
// the timer runs. The returned function cancels the callback; after it
// returns fn will not be called, provided cancel runs on the same
// goroutine that post delivers to.
func (t *Timer) At(when time.Time, fn func()) (cancel func()) {
	h := &handle{}

	job := cron.FuncJob(func() {
		h.mu.Lock()
		id, cancelled := h.id, h.cancelled
		h.fired = true
		h.mu.Unlock()

		t.cron.Remove(id)
		if cancelled {
			return
		}
		t.post(func() {
			h.mu.Lock()
			cancelled := h.cancelled
			h.mu.Unlock()
			if !cancelled {
				fn()
			}
		})
	})

	h.mu.Lock()
	h.id = t.cron.Schedule(&onceSchedule{at: when.UTC()}, job)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return
		}
		h.cancelled = true
		id, fired := h.id, h.fired
		h.mu.Unlock()

		if !fired {
			t.cron.Remove(id)
		}
	}
}

type handle struct {
	mu        sync.Mutex
	id        cron.EntryID
	fired     bool
	cancelled bool
}

// onceSchedule is a cron.Schedule that activates exactly once.
// Cron asks for the next activation when the entry is added and again
// after each run; a zero time means never.
type onceSchedule struct {
	at    time.Time
	armed bool
	done  bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		s.armed = true
		return s.at
	}
	if s.armed || s.done {
		return time.Time{}
	}
	s.done = true
	return t
}
