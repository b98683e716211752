// Package email sends transactional mail through SendGrid.
package email

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/models"
)

// Service handles email sending. Without an API key it logs the mail
// instead of sending, which is what development environments want.
type Service struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	baseURL   string
	logger    logger.Logger
}

// NewService creates a new email service
func NewService(apiKey, fromEmail, fromName, baseURL string, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}

	s := &Service{
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
		logger:    log,
	}
	if apiKey != "" {
		s.client = sendgrid.NewSendClient(apiKey)
	}
	return s
}

// SendUpgradeConfirmation confirms a plan purchase
func (s *Service) SendUpgradeConfirmation(toEmail, toName, plan string) error {
	subject := fmt.Sprintf("Your %s plan is active", plan)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour upgrade to the %s plan is complete. Your workspaces now run with the higher limits of your new plan.\n\nOpen your workspaces: %s\n\nThanks,\nThe Tileboard Team\n",
		displayName(toName), plan, s.baseURL)

	return s.send(toEmail, toName, subject, body)
}

// SendMigrationSummary reports what a guest data migration brought over
func (s *Service) SendMigrationSummary(toEmail, toName string, stats models.MigrationStats) error {
	subject := "Your workspaces made it over"
	body := fmt.Sprintf(
		"Hi %s,\n\nWe moved your guest workspaces into your account:\n\n  Workspaces: %d\n  Dashboards: %d\n  Tiles: %d\n  Contacts: %d\n  Notes: %d\n\nOpen them here: %s\n\nThanks,\nThe Tileboard Team\n",
		displayName(toName),
		stats.WorkspacesMigrated,
		stats.DashboardsMigrated,
		stats.TilesMigrated,
		stats.ContactsMigrated,
		stats.NotesMigrated,
		s.baseURL)

	return s.send(toEmail, toName, subject, body)
}

func (s *Service) send(toEmail, toName, subject, body string) error {
	if s.client == nil {
		s.logger.Info("email suppressed (no api key)",
			"to", toEmail, "subject", subject)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status %d", resp.StatusCode)
	}

	s.logger.Debug("email sent", "to", toEmail, "subject", subject)
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
