// Package schedule runs a task on a fixed interval.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Task is one cycle of periodic work.
type Task func(ctx context.Context) error

// Ticker delivers ticks. time.Ticker satisfies it through NewTimeTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker for an interval.
type TickerFactory func(interval time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(interval time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(interval)}
}

// Loop runs Task once immediately and then on every tick. A failing cycle is
// logged and the loop waits for the next tick. Ticks that fire while a cycle
// is still running are dropped by the ticker, so cycles never overlap.
type Loop struct {
	name      string
	interval  time.Duration
	task      Task
	newTicker TickerFactory
	logger    *zap.Logger
	onResult  func(err error, elapsed time.Duration)
}

// Option customizes a Loop.
type Option func(*Loop)

// WithTicker replaces the wall-clock ticker.
func WithTicker(factory TickerFactory) Option {
	return func(l *Loop) { l.newTicker = factory }
}

// WithResultHook is called after every cycle.
func WithResultHook(hook func(err error, elapsed time.Duration)) Option {
	return func(l *Loop) { l.onResult = hook }
}

// NewLoop builds a loop.
func NewLoop(name string, interval time.Duration, task Task, logger *zap.Logger, opts ...Option) (*Loop, error) {
	if task == nil {
		return nil, fmt.Errorf("%s: task is nil", name)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%s: interval must be positive", name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		name:      name,
		interval:  interval,
		task:      task,
		newTicker: NewTimeTicker,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Step runs exactly one cycle and returns its error.
func (l *Loop) Step(ctx context.Context) error {
	start := time.Now()
	err := l.task(ctx)
	elapsed := time.Since(start)
	if err != nil {
		l.logger.Warn("cycle failed", zap.String("loop", l.name), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		l.logger.Debug("cycle complete", zap.String("loop", l.name), zap.Duration("elapsed", elapsed))
	}
	if l.onResult != nil {
		l.onResult(err, elapsed)
	}
	return err
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.newTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("loop start", zap.String("loop", l.name), zap.Duration("interval", l.interval))

	_ = l.Step(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stop", zap.String("loop", l.name))
			return ctx.Err()
		case <-ticker.C():
			if ctx.Err() != nil {
				continue
			}
			_ = l.Step(ctx)
		}
	}
}
