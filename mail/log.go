package mail

import (
	"context"

	"github.com/MrEthical07/shopauth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogMailer accepts every message and writes it to a logger. It is meant for
// local development only: the message body, including the code, is logged.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a LogMailer. A nil logger discards output.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, msg shopauth.MailMessage) (shopauth.MailReceipt, error) {
	id := uuid.NewString()
	m.logger.Info("mail delivered to log",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("html", msg.HTML))
	return shopauth.MailReceipt{MessageID: id, Accepted: []string{msg.To}}, nil
}
