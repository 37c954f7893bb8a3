package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
)

// mailSender is the part of the SendGrid client the email service uses
type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type emailService struct {
	client    mailSender
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return newEmailServiceWithSender(sendgrid.NewSendClient(apiKey), fromEmail, fromName)
}

func newEmailServiceWithSender(client mailSender, fromEmail, fromName string) *emailService {
	return &emailService{client: client, fromEmail: fromEmail, fromName: fromName}
}

func (s *emailService) SendDunningEmail(ctx context.Context, e domain.DunningEmail) error {
	if strings.TrimSpace(e.RecipientEmail) == "" {
		return fmt.Errorf("dunning email %s has no recipient", e.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := renderDunningEmail(e)
	if err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(e.Metadata["organization_name"], e.RecipientEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	logger.ExternalServiceCall("SendGrid", "Send", "emailID", e.ID, "type", e.EmailType)
	response, err := s.client.Send(message)
	if err != nil {
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return err
	}
	logger.ExternalServiceResult("SendGrid", "Send", nil, "status", response.StatusCode)
	return nil
}

func renderDunningEmail(e domain.DunningEmail) (string, string, error) {
	orgName := e.Metadata["organization_name"]
	if orgName == "" {
		orgName = "your organization"
	}

	switch e.EmailType {
	case domain.DunningEmailTrialExpired:
		subject := fmt.Sprintf("Your free trial for %s has ended", orgName)
		body := fmt.Sprintf("Hello,\n\nThe free trial for %s has ended and the account is now read-only.", orgName)
		if ends := e.Metadata["grace_period_ends_at"]; ends != "" {
			body += fmt.Sprintf("\n\nSubscribe before %s to keep your data. After that date the account will be archived.", ends)
		}
		return subject, body + "\n\nBest regards,\nThe Realty Team", nil
	case domain.DunningEmailAccountArchived:
		subject := fmt.Sprintf("%s has been archived", orgName)
		body := fmt.Sprintf("Hello,\n\nThe grace period for %s ended without an active subscription, so the account has been archived.\n\nSubscribe at any time to restore access.\n\nBest regards,\nThe Realty Team", orgName)
		return subject, body, nil
	case domain.DunningEmailCardExpiring:
		subject := "Your payment card is about to expire"
		body := "Hello,\n\nThe payment card on file for your subscription is about to expire."
		if expires := e.Metadata["card_expires_at"]; expires != "" {
			body += fmt.Sprintf(" It expires on %s.", expires)
		}
		return subject, body + "\n\nPlease update your billing details to avoid an interruption.\n\nBest regards,\nThe Realty Team", nil
	default:
		return "", "", fmt.Errorf("unknown dunning email type %q", e.EmailType)
	}
}
