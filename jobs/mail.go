package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

// MailConfig carries SMTP settings for the mail handler.
type MailConfig struct {
	Host string
	Port int
	From string
}

// MailHandler delivers notification emails over plain SMTP. Local
// development points it at Mailpit.
type MailHandler struct {
	cfg    MailConfig
	logger *slog.Logger
	send   func(addr, from string, to []string, msg []byte) error
}

// NewMailHandler constructs a MailHandler.
func NewMailHandler(cfg MailConfig, logger *slog.Logger) *MailHandler {
	return &MailHandler{
		cfg:    cfg,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Handle processes TaskSendMail tasks.
func (h *MailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}
	addr := fmt.Sprintf("%s:%d", h.cfg.Host, h.cfg.Port)
	msg := []byte("From: " + h.cfg.From + "\r\n" +
		"To: " + payload.To + "\r\n" +
		"Subject: " + payload.Subject + "\r\n" +
		"\r\n" +
		payload.Body + "\r\n")
	if err := h.send(addr, h.cfg.From, []string{payload.To}, msg); err != nil {
		h.logger.Warn("mail delivery failed", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	h.logger.Info("mail sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
