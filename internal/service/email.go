package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const mailerStatusThreshold = 300

// Mailer is the delivery collaborator. Template rendering and transport live
// in a separate mailer service; this side only posts delivery requests.
type Mailer interface {
	// SendPasswordReset must succeed for the forgot-password flow to report
	// success; its failure is user-visible.
	SendPasswordReset(ctx context.Context, recipient, link string) error
	// NotifyPasswordChanged is fire-and-forget; the password change has
	// already been committed.
	NotifyPasswordChanged(ctx context.Context, recipient string)
}

// MailerService posts JSON delivery requests to the mailer webhook.
type MailerService struct {
	client    *http.Client
	log       *zap.SugaredLogger
	mailerURL string
}

func NewMailerService(log *zap.SugaredLogger, mailerURL string) *MailerService {
	return &MailerService{
		client:    &http.Client{},
		log:       log,
		mailerURL: mailerURL,
	}
}

func (s *MailerService) SendPasswordReset(ctx context.Context, recipient, link string) error {
	return s.post(ctx, map[string]interface{}{
		"template":   "password_reset",
		"recipient":  recipient,
		"reset_link": link,
	})
}

func (s *MailerService) NotifyPasswordChanged(ctx context.Context, recipient string) {
	go func() {
		err := s.post(context.WithoutCancel(ctx), map[string]interface{}{
			"template":  "password_changed",
			"recipient": recipient,
		})
		if err != nil {
			s.log.Warnw("failed to send password-changed notification", "error", err)
		}
	}()
}

func (s *MailerService) post(ctx context.Context, data map[string]interface{}) error {
	if s.mailerURL == "" {
		return fmt.Errorf("mailer URL is not configured")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal mailer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.mailerURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create mailer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach mailer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= mailerStatusThreshold {
		return fmt.Errorf("mailer returned status %d", resp.StatusCode)
	}
	return nil
}
