package handler

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// EmailConfig holds SMTP settings for outgoing mail.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailHandler sends mail for send_email tasks. Parameters: to, subject, body.
type EmailHandler struct {
	logger *zap.Logger
	config EmailConfig
}

// NewEmailHandler creates a new email handler.
func NewEmailHandler(logger *zap.Logger, config EmailConfig) *EmailHandler {
	return &EmailHandler{
		logger: logger.Named("email-handler"),
		config: config,
	}
}

// Execute composes the message and hands it off to the SMTP transport.
func (h *EmailHandler) Execute(ctx context.Context, task *model.Task) (*model.TaskResult, error) {
	to := task.Param("to")
	if to == "" {
		return nil, fmt.Errorf("send_email requires a 'to' parameter")
	}
	subject := task.Param("subject")
	body := task.Param("body")

	h.logger.Info("Sending email",
		zap.String("to", to),
		zap.String("subject", subject))

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n",
		h.config.From, to, subject, body)

	auth := smtp.PlainAuth("", h.config.Username, h.config.Password, h.config.Host)
	addr := fmt.Sprintf("%s:%d", h.config.Host, h.config.Port)

	if err := smtp.SendMail(addr, auth, h.config.From, []string{to}, []byte(msg)); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &model.TaskResult{
		Action:      model.ActionSendEmail,
		Output:      fmt.Sprintf("Email handed off to %s", to),
		CompletedAt: time.Now(),
	}, nil
}
