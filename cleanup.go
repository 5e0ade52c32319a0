package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PendingSweeper periodically removes abandoned pending signups. It is owned
// by the process: start it once at boot and stop it at shutdown.
type PendingSweeper struct {
	store     CredentialStore
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	metrics   *Metrics
	now       func() time.Time
	engine    *Engine

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPendingSweeper builds a sweeper that uses the store, clock, metrics and
// cleanup settings of engine. A nil logger discards output.
func NewPendingSweeper(engine *Engine, logger *zap.Logger) (*PendingSweeper, error) {
	if err := engine.ready(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PendingSweeper{
		store:     engine.store,
		retention: engine.config.Cleanup.PendingRetention,
		interval:  engine.config.Cleanup.Interval,
		logger:    logger.Named("pending_sweeper"),
		metrics:   engine.metrics,
		now:       engine.clock,
		engine:    engine,
	}, nil
}

// Sweep deletes pending signups older than the retention window whose OTP has
// also expired. Records removed concurrently by another path are not an error.
func (s *PendingSweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	removed, err := s.store.DeleteExpiredPending(ctx, now.Add(-s.retention), now)
	if err != nil {
		return 0, fmt.Errorf("sweep pending signups: %w", err)
	}
	if removed > 0 {
		s.metrics.Add(MetricPendingSwept, uint64(removed))
		s.engine.emitAudit(ctx, auditEventPendingSweep, true, "", nil, func() map[string]string {
			return map[string]string{"removed": strconv.FormatInt(removed, 10)}
		})
	}
	return removed, nil
}

// Start schedules Sweep every cleanup interval. Overlapping runs are skipped.
func (s *PendingSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("pending sweeper already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger.Sugar()})))
	if _, err := c.AddFunc("@every "+s.interval.String(), s.run); err != nil {
		return fmt.Errorf("schedule pending sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Info("pending sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep or ctx, whichever
// finishes first.
func (s *PendingSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		s.logger.Info("pending sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PendingSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	removed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("pending sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("pending sweep finished", zap.Int64("removed", removed))
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
