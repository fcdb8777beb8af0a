package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockbutler/internal/config"
	"stockbutler/internal/logger"
	"stockbutler/internal/models"

	"github.com/mailgun/mailgun-go/v5"
)

// ReportSubject is the subject line of every report mail.
const ReportSubject = "今日报告 — 存货小管家"

const sendTimeout = 10 * time.Second

var ErrNotConfigured = errors.New("email service is not configured")

type Service struct {
	client      mailgun.Mailgun
	domain      string
	senderEmail string
	senderName  string
	enabled     bool

	// deliver is swapped out in tests
	deliver func(ctx context.Context, to, subject, htmlBody, textBody string) error
}

func NewService(cfg *config.Config) *Service {
	enabled := cfg.MailgunConfigured()

	var client mailgun.Mailgun
	if enabled {
		client = mailgun.NewMailgun(cfg.MailgunAPIKey)
	}

	s := &Service{
		client:      client,
		domain:      cfg.MailgunDomain,
		senderEmail: cfg.MailgunSenderEmail,
		senderName:  cfg.MailgunSenderName,
		enabled:     enabled,
	}
	s.deliver = s.sendViaMailgun
	return s
}

func (s *Service) IsEnabled() bool {
	return s != nil && s.enabled
}

// SendReport mails the rendered report to one recipient.
func (s *Service) SendReport(ctx context.Context, to string, report models.Report) error {
	if !s.IsEnabled() {
		return ErrNotConfigured
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("missing recipient")
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := s.deliver(ctx, to, ReportSubject, renderReportHTML(report), renderReportText(report)); err != nil {
		return fmt.Errorf("failed to send report to %s: %w", to, err)
	}

	logger.Info("Report email sent", "email", to, "expiring", len(report.ExpiringItems))
	return nil
}

func (s *Service) sendViaMailgun(ctx context.Context, to, subject, htmlBody, textBody string) error {
	message := mailgun.NewMessage(
		s.domain,
		fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail),
		subject,
		textBody,
		to,
	)
	message.SetHTML(htmlBody)

	resp, err := s.client.Send(ctx, message)
	if err != nil {
		return err
	}

	logger.Debug("Mailgun accepted message", "response", fmt.Sprintf("%v", resp))
	return nil
}
