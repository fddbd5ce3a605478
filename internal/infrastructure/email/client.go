// Package email provides the email client for sending transactional emails.
package email

import (
	"fmt"

	"github.com/AuroraHealth/aurora-go/internal/infrastructure/email/templates"
	"github.com/AuroraHealth/aurora-go/pkg/config"
	"github.com/resendlabs/resend-go"
)

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendLeadNotificationEmail(leadEmail, funnelName, sessionToken string, utm map[string]string) error
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client   *resend.Client
	from     string
	notifyTo string
}

// NewService creates a new email service client, returning the Service interface.
// Returns an error when RESEND_API_KEY or LEAD_NOTIFY_EMAIL is not configured;
// callers treat that as "lead notifications disabled".
func NewService() (Service, error) {
	if config.ResendAPIKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}
	if config.LeadNotifyEmail == "" {
		return nil, fmt.Errorf("LEAD_NOTIFY_EMAIL environment variable is required")
	}

	return &ResendClient{
		client:   resend.NewClient(config.ResendAPIKey),
		from:     config.EmailFrom,
		notifyTo: config.LeadNotifyEmail,
	}, nil
}

// SendLeadNotificationEmail composes and sends the internal lead alert.
func (c *ResendClient) SendLeadNotificationEmail(leadEmail, funnelName, sessionToken string, utm map[string]string) error {
	htmlContent := templates.GetLeadNotificationContent(templates.LeadNotificationProps{
		LeadEmail:    leadEmail,
		FunnelName:   funnelName,
		SessionToken: sessionToken,
		UTMSource:    utm["utm_source"],
		UTMCampaign:  utm["utm_campaign"],
	})

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{c.notifyTo},
		Subject: fmt.Sprintf("New lead: %s", funnelName),
		Html:    htmlContent,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send lead notification via Resend: %w", err)
	}

	return nil
}
