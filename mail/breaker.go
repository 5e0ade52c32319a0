package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/shopauth"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig configures [BreakerMailer].
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerMailer wraps a transport in a circuit breaker. Only transport errors
// count as failures; a rejected recipient is a healthy answer.
type BreakerMailer struct {
	next shopauth.Mailer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerMailer wraps next. Zero config values fall back to 5 consecutive
// failures, a 60s counting interval and a 30s open timeout.
func NewBreakerMailer(next shopauth.Mailer, cfg BreakerConfig, logger *zap.Logger) *BreakerMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "mail"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerMailer{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

// State reports the breaker state.
func (m *BreakerMailer) State() gobreaker.State {
	return m.cb.State()
}

func (m *BreakerMailer) Send(ctx context.Context, msg shopauth.MailMessage) (shopauth.MailReceipt, error) {
	res, err := m.cb.Execute(func() (interface{}, error) {
		return m.next.Send(ctx, msg)
	})
	if err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("mail breaker: %w", err)
	}
	return res.(shopauth.MailReceipt), nil
}
