package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DispatcherConfig controls retries, timeouts and per-channel rate limits.
type DispatcherConfig struct {
	MaxAttempts     int           `env:"DELIVERY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBase       time.Duration `env:"DELIVERY_RETRY_BASE" envDefault:"500ms"`
	RetryMaxDelay   time.Duration `env:"DELIVERY_RETRY_MAX_DELAY" envDefault:"10s"`
	SendTimeout     time.Duration `env:"DELIVERY_SEND_TIMEOUT" envDefault:"10s"`
	PushRatePerSec  int           `env:"DELIVERY_PUSH_RATE_PER_SEC" envDefault:"50"`
	EmailRatePerSec int           `env:"DELIVERY_EMAIL_RATE_PER_SEC" envDefault:"10"`
	// LiveRatePerSec limits live in-app writes; zero means unlimited.
	LiveRatePerSec int `env:"DELIVERY_LIVE_RATE_PER_SEC" envDefault:"0"`
}

// DefaultDispatcherConfig mirrors the env defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxAttempts:     3,
		RetryBase:       500 * time.Millisecond,
		RetryMaxDelay:   10 * time.Second,
		SendTimeout:     10 * time.Second,
		PushRatePerSec:  50,
		EmailRatePerSec: 10,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	def := DefaultDispatcherConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = def.RetryBase
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = def.RetryMaxDelay
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	return c
}

// Dispatcher sends delivery requests through a ChannelSender. Each request
// runs independently: a slow or failing push never holds back the email or
// in-app leg of the same notification.
type Dispatcher struct {
	sender   ChannelSender
	subs     SubscriptionStore
	history  DeliveryLog
	log      *slog.Logger
	cfg      DispatcherConfig
	limiters map[Channel]*rate.Limiter
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	jitter   func() float64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithSubscriptionStore enables deactivation of push subscriptions whose
// sender reports ErrSubscriptionExpired.
func WithSubscriptionStore(s SubscriptionStore) DispatcherOption {
	return func(d *Dispatcher) { d.subs = s }
}

// WithDeliveryLog records every outcome in l.
func WithDeliveryLog(l DeliveryLog) DispatcherOption {
	return func(d *Dispatcher) { d.history = l }
}

// WithDispatcherClock replaces time.Now.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithBackoff replaces the wait between retries and the jitter source.
// jitter must return a value in [0, 1).
func WithBackoff(sleep func(ctx context.Context, d time.Duration) error, jitter func() float64) DispatcherOption {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
		if jitter != nil {
			d.jitter = jitter
		}
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(sender ChannelSender, cfg DispatcherConfig, opts ...DispatcherOption) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		sender:   sender,
		log:      slog.Default(),
		cfg:      cfg,
		limiters: make(map[Channel]*rate.Limiter),
		now:      time.Now,
		sleep:    sleepContext,
		jitter:   rand.Float64,
	}
	for ch, rps := range map[Channel]int{
		ChannelPush:  cfg.PushRatePerSec,
		ChannelEmail: cfg.EmailRatePerSec,
		ChannelInApp: cfg.LiveRatePerSec,
	} {
		if rps > 0 {
			d.limiters[ch] = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers every request concurrently and returns one outcome per
// request, in request order. It returns when all requests are settled.
func (d *Dispatcher) Send(ctx context.Context, reqs []DeliveryRequest) []DeliveryOutcome {
	if len(reqs) == 0 {
		return nil
	}

	outcomes := make([]DeliveryOutcome, len(reqs))
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, reqs[i])
		}(i)
	}
	wg.Wait()

	if d.history != nil {
		if err := d.history.Record(context.WithoutCancel(ctx), outcomes...); err != nil {
			d.log.LogAttrs(ctx, slog.LevelError, "failed to record delivery outcomes", logger.Error(err))
		}
	}
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, req DeliveryRequest) DeliveryOutcome {
	out := DeliveryOutcome{
		ReferenceID: req.Payload.ReferenceID(),
		Kind:        req.Payload.Kind,
		UserID:      req.Payload.UserID(),
		Channel:     req.Channel,
		Address:     req.Address,
		StartedAt:   d.now(),
	}
	if req.Subscription != nil {
		out.SubscriptionID = req.Subscription.ID
	}
	finish := func(status DeliveryStatus, err error) DeliveryOutcome {
		out.Status = status
		if err != nil {
			out.Error = err.Error()
		}
		out.FinishedAt = d.now()
		d.logOutcome(ctx, out)
		return out
	}

	if req.Channel == ChannelInApp && req.Address == "" {
		return finish(StatusSkipped, nil)
	}
	if req.Channel == ChannelPush && req.Subscription == nil {
		return finish(StatusFailedPermanent, fmt.Errorf("%w: push request without subscription", ErrPermanentDelivery))
	}

	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt

		if lim := d.limiters[req.Channel]; lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return finish(StatusFailedTransient, errors.Join(ErrTransientDelivery, werr))
			}
		}

		err = d.call(ctx, req)
		switch {
		case err == nil:
			return finish(StatusDelivered, nil)
		case errors.Is(err, ErrSessionNotConnected):
			return finish(StatusSkipped, err)
		case errors.Is(err, ErrSubscriptionExpired):
			d.deactivate(ctx, req)
			return finish(StatusFailedPermanent, err)
		case errors.Is(err, ErrPermanentDelivery):
			return finish(StatusFailedPermanent, err)
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}
		d.log.LogAttrs(ctx, slog.LevelDebug, "delivery attempt failed, retrying",
			logger.Channel(req.Channel),
			logger.NotificationID(out.ReferenceID),
			logger.RetryCount(attempt),
			logger.Error(err),
		)
		if serr := d.sleep(ctx, d.retryDelay(attempt)); serr != nil {
			err = errors.Join(err, serr)
			break
		}
	}
	return finish(StatusFailedTransient, err)
}

// call invokes the sender under SendTimeout. A sender that ignores its
// context is abandoned when the deadline passes.
func (d *Dispatcher) call(ctx context.Context, req DeliveryRequest) error {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		switch req.Channel {
		case ChannelPush:
			done <- d.sender.SendPush(callCtx, *req.Subscription, req.Payload)
		case ChannelEmail:
			done <- d.sender.SendEmail(callCtx, req.Address, req.Payload)
		case ChannelInApp:
			done <- d.sender.SendInAppLive(callCtx, req.Address, req.Payload)
		default:
			done <- fmt.Errorf("%w: unknown channel %q", ErrPermanentDelivery, req.Channel)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return errors.Join(ErrTransientDelivery, callCtx.Err())
	}
}

func (d *Dispatcher) deactivate(ctx context.Context, req DeliveryRequest) {
	if req.Channel != ChannelPush || req.Subscription == nil || d.subs == nil {
		return
	}
	err := d.subs.Deactivate(context.WithoutCancel(ctx), req.Subscription.ID, d.now())
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to deactivate push subscription",
			logger.SubscriptionID(req.Subscription.ID),
			logger.Error(err),
		)
		return
	}
	d.log.LogAttrs(ctx, slog.LevelInfo, "push subscription deactivated",
		logger.UserID(req.Subscription.UserID),
		logger.SubscriptionID(req.Subscription.ID),
	)
}

// retryDelay returns the wait before attempt+1: base * 2^(attempt-1),
// capped, with 0.7..1.3 jitter.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.RetryMaxDelay {
			delay = d.cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + d.jitter()*0.6
	delay = time.Duration(float64(delay) * j)
	if delay < 0 {
		return 0
	}
	return delay
}

func (d *Dispatcher) logOutcome(ctx context.Context, out DeliveryOutcome) {
	level := slog.LevelDebug
	switch out.Status {
	case StatusFailedTransient, StatusFailedPermanent:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		logger.UserID(out.UserID),
		logger.NotificationID(out.ReferenceID),
		logger.Channel(out.Channel),
		logger.Status(out.Status),
		slog.Int("attempts", out.Attempts),
		logger.Duration(out.FinishedAt.Sub(out.StartedAt)),
	}
	if out.Error != "" {
		attrs = append(attrs, slog.String("error", out.Error))
	}
	d.log.LogAttrs(ctx, level, "delivery finished", attrs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
