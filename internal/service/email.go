package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appURL    string
	appName   string
}

func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
	}
}

// SendTwinQueuedEmail tells the user their twin job was accepted.
func (s *EmailService) SendTwinQueuedEmail(ctx context.Context, email, name, jobID string) error {
	jobURL := fmt.Sprintf("%s/api/onboarding/jobs/%s", s.appURL, jobID)
	if name == "" {
		name = "there"
	}
	subject, body := twinQueuedEmailTemplate(name, jobURL, s.appName)

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "twin_queued", "to", email, "subject", subject, "url", jobURL)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("email sent", "type", "twin_queued", "to", email)
	}
	return err
}
