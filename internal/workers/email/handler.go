// Package email consumes the email stream: invites, password resets and
// generic email requests.
package email

import (
	"context"
	stderrors "errors"
	"fmt"

	"notification-workers/internal/channels/email"
	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/pkg/registry"
)

type Invite struct {
	Email        string `json:"email"`
	TempPassword string `json:"tempPassword"`
	URL          string `json:"url,omitempty"`
}

type PasswordReset struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Handler sends one email per payload item.
type Handler struct {
	sender email.Sender
	appURL string
	logger logger.Logger
}

func NewHandler(sender email.Sender, appURL string, log logger.Logger) *Handler {
	return &Handler{
		sender: sender,
		appURL: appURL,
		logger: log.WithFields(map[string]interface{}{"component": "email-worker"}),
	}
}

// Routes binds the email stream subjects.
func (h *Handler) Routes() []consumer.Route {
	return []consumer.Route{
		consumer.Handle(registry.SubjectEmailInvite, h.HandleInvite),
		consumer.Handle(registry.SubjectEmailPasswordReset, h.HandlePasswordReset),
		consumer.Handle(registry.SubjectEmailSend, h.HandleSend),
	}
}

func (h *Handler) HandleInvite(ctx context.Context, items []Invite) error {
	msgs := make([]email.Email, len(items))
	for i, it := range items {
		url := it.URL
		if url == "" {
			url = h.appURL
		}
		msgs[i] = email.InviteEmail(it.Email, it.TempPassword, url)
	}
	return h.sendAll(ctx, registry.SubjectEmailInvite, msgs)
}

func (h *Handler) HandlePasswordReset(ctx context.Context, items []PasswordReset) error {
	msgs := make([]email.Email, len(items))
	for i, it := range items {
		msgs[i] = email.PasswordResetEmail(it.Email, it.OTP)
	}
	return h.sendAll(ctx, registry.SubjectEmailPasswordReset, msgs)
}

func (h *Handler) HandleSend(ctx context.Context, items []email.Email) error {
	return h.sendAll(ctx, registry.SubjectEmailSend, items)
}

// sendAll tries every message; the batch fails if any send failed.
func (h *Handler) sendAll(ctx context.Context, subject string, msgs []email.Email) error {
	var errs []error
	for i, m := range msgs {
		if err := h.sender.Send(ctx, m); err != nil {
			metrics.ChannelDeliveries.WithLabelValues("email", "failed").Inc()
			errs = append(errs, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		metrics.ChannelDeliveries.WithLabelValues("email", "confirmed").Inc()
	}
	if len(errs) > 0 {
		h.logger.Warn("Email send failed", map[string]interface{}{
			"subject":  subject,
			"failures": len(errs),
			"total":    len(msgs),
		})
	}
	return stderrors.Join(errs...)
}
