package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/logger"
)

// ResendTransport sends mail through the Resend API.
type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(apiKey, from string) *ResendTransport {
	return &ResendTransport{client: resend.NewClient(apiKey), from: from}
}

func (t *ResendTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	resp, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", err
	}
	if resp.Id == "" {
		return "", errors.New("resend: empty message id")
	}
	return resp.Id, nil
}

// LogTransport writes messages to the log instead of sending them. It is used
// when no mail provider is configured.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, to, subject, html string) (string, error) {
	id := "log-" + uuid.NewString()
	logger.Info("mail not sent (log transport)",
		zap.String("message_id", id),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("html_bytes", len(html)),
	)
	return id, nil
}
