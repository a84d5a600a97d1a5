package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DefaultDigestTick closes expired digest windows once a minute.
const DefaultDigestTick = "@every 1m"

// DigestScheduler periodically flushes expired digest windows.
type DigestScheduler struct {
	engine   *Engine
	schedule string
	parser   cron.Parser
	log      *slog.Logger

	mu     sync.Mutex
	c      *cron.Cron
	cancel context.CancelFunc
}

// SchedulerOption configures a DigestScheduler.
type SchedulerOption func(*DigestScheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *DigestScheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewDigestScheduler validates schedule (a cron expression or descriptor such as
// "@every 30s") and returns a stopped scheduler.
func NewDigestScheduler(engine *Engine, schedule string, opts ...SchedulerOption) (*DigestScheduler, error) {
	if schedule == "" {
		schedule = DefaultDigestTick
	}
	s := &DigestScheduler{
		engine:   engine,
		schedule: schedule,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid digest tick %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *DigestScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.Tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule digest tick: %w", err)
	}
	c.Start()
	s.c, s.cancel = c, cancel
	s.log.LogAttrs(ctx, slog.LevelInfo, "digest scheduler started", slog.String("schedule", s.schedule))
	return nil
}

// Tick flushes every window that has expired by now.
func (s *DigestScheduler) Tick(ctx context.Context) {
	start := time.Now()
	digests := s.engine.FlushDigests(ctx, s.engine.now())
	if len(digests) > 0 {
		s.log.LogAttrs(ctx, slog.LevelInfo, "digests flushed",
			slog.Int("count", len(digests)),
			logger.Duration(time.Since(start)),
		)
	}
}

// Stop halts ticking and waits for a running tick to finish or ctx to end.
func (s *DigestScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	stopped := c.Stop()
	select {
	case <-stopped.Done():
		cancel()
		s.log.LogAttrs(ctx, slog.LevelInfo, "digest scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}
