package reconnect

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"pairlink/internal/domain"
)

// ErrReconnectExhausted reports that every rejoin attempt for one disruption
// failed.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Reconnector turns transport disruptions into rejoins of the bound channel.
type Reconnector struct {
	target  domain.Rejoiner
	focus   FocusSource
	cfg     BackoffConfig
	log     *zap.Logger
	rng     *rand.Rand
	trigger chan struct{}

	onExhausted func(error)
	onRejoined  func(attempt int)
}

// Option configures a Reconnector.
type Option func(*Reconnector)

// WithLogger sets the logger. Nil keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconnector) {
		if l != nil {
			r.log = l
		}
	}
}

// WithOnExhausted is called when MaxAttempts rejoins fail in a row. The
// error wraps ErrReconnectExhausted and the last rejoin error.
func WithOnExhausted(fn func(error)) Option {
	return func(r *Reconnector) { r.onExhausted = fn }
}

// WithOnRejoined is called after a successful rejoin.
func WithOnRejoined(fn func(attempt int)) Option {
	return func(r *Reconnector) { r.onRejoined = fn }
}

// WithRand sets the jitter source.
func WithRand(rng *rand.Rand) Option {
	return func(r *Reconnector) { r.rng = rng }
}

// New returns a Reconnector for target. A nil focus means AlwaysFocused.
func New(target domain.Rejoiner, focus FocusSource, cfg BackoffConfig, opts ...Option) *Reconnector {
	if focus == nil {
		focus = AlwaysFocused{}
	}
	r := &Reconnector{
		target:  target,
		focus:   focus,
		cfg:     cfg,
		log:     zap.NewNop(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		trigger: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HandleDisruption schedules a rejoin. It never blocks; disruptions that
// arrive before the worker picks up the last one are merged into it.
func (r *Reconnector) HandleDisruption() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run processes disruptions until ctx is done.
func (r *Reconnector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.trigger:
			if err := r.recover(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Reconnector) recover(ctx context.Context) error {
	for !r.focus.Focused() {
		r.log.Debug("relay lost while unfocused; waiting for focus")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.focus.Regained():
		}
	}

	for attempt := 1; ; attempt++ {
		err := r.target.Rejoin(ctx)
		if err == nil {
			r.log.Info("channel rejoined", zap.Int("attempt", attempt))
			if r.onRejoined != nil {
				r.onRejoined(attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.cfg.MaxAttempts > 0 && attempt >= r.cfg.MaxAttempts {
			err = fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, attempt, err)
			r.log.Error("giving up on relay", zap.Error(err))
			if r.onExhausted != nil {
				r.onExhausted(err)
			}
			return nil
		}
		delay := NextBackoffDelay(r.cfg, attempt, r.rng)
		r.log.Warn("rejoin failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

var _ domain.DisruptionHandler = (*Reconnector)(nil)
