package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/shopauth"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	calls   int
	err     error
	receipt shopauth.MailReceipt
}

func (s *stubMailer) Send(context.Context, shopauth.MailMessage) (shopauth.MailReceipt, error) {
	s.calls++
	return s.receipt, s.err
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubMailer{err: errors.New("connection refused")}
	m := NewBreakerMailer(next, BreakerConfig{MaxFailures: 3, Timeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, err := m.Send(context.Background(), shopauth.MailMessage{To: "a@example.com"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, m.State())

	_, err := m.Send(context.Background(), shopauth.MailMessage{To: "a@example.com"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerTreatsRejectionAsHealthy(t *testing.T) {
	next := &stubMailer{receipt: shopauth.MailReceipt{Rejected: []string{"a@example.com"}}}
	m := NewBreakerMailer(next, BreakerConfig{MaxFailures: 1}, nil)

	for i := 0; i < 5; i++ {
		receipt, err := m.Send(context.Background(), shopauth.MailMessage{To: "a@example.com"})
		require.NoError(t, err)
		assert.False(t, receipt.Accepts("a@example.com"))
	}
	assert.Equal(t, gobreaker.StateClosed, m.State())
}
