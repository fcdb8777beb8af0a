package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbutler/internal/config"
	"stockbutler/internal/models"
)

type capturedMail struct {
	to, subject, html, text string
}

func newTestService(deliverErr error) (*Service, *[]capturedMail) {
	svc := NewService(&config.Config{
		MailgunDomain:      "mg.example.com",
		MailgunAPIKey:      "key",
		MailgunSenderEmail: "noreply@example.com",
		MailgunSenderName:  "存货小管家",
	})
	var sent []capturedMail
	svc.deliver = func(ctx context.Context, to, subject, htmlBody, textBody string) error {
		if deliverErr != nil {
			return deliverErr
		}
		sent = append(sent, capturedMail{to, subject, htmlBody, textBody})
		return nil
	}
	return svc, &sent
}

func sampleReport() models.Report {
	return models.Report{
		UrgingText: "有几样快到期啦，记得先用哦～",
		ExpiringItems: []models.ReportItem{
			{Name: "牛奶<鲜>", Brand: "光明", Category1: "乳品", Category2: "鲜奶", ExpiryDate: "2024-03-06"},
		},
		NewEntriesByCategory: []models.CategoryTotal{{Category1: "乳品", TotalPrice: 20}},
		WindowWeeks:          4,
	}
}

func TestSendReportNotConfigured(t *testing.T) {
	svc := NewService(&config.Config{})
	assert.False(t, svc.IsEnabled())
	assert.ErrorIs(t, svc.SendReport(context.Background(), "a@example.com", sampleReport()), ErrNotConfigured)
}

func TestSendReport(t *testing.T) {
	svc, sent := newTestService(nil)

	require.NoError(t, svc.SendReport(context.Background(), " a@example.com ", sampleReport()))
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "a@example.com", mail.to)
	assert.Equal(t, ReportSubject, mail.subject)
	assert.Contains(t, mail.html, "牛奶&lt;鲜&gt;")
	assert.Contains(t, mail.html, "¥20.00")
	assert.Contains(t, mail.html, "过去 4 周")
	assert.Contains(t, mail.text, "有几样快到期啦")
	assert.Contains(t, mail.text, "- 乳品: ¥20.00")
}

func TestSendReportRequiresRecipient(t *testing.T) {
	svc, sent := newTestService(nil)
	assert.Error(t, svc.SendReport(context.Background(), "  ", sampleReport()))
	assert.Empty(t, *sent)
}

func TestSendReportWrapsDeliveryError(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := newTestService(boom)
	assert.ErrorIs(t, svc.SendReport(context.Background(), "a@example.com", sampleReport()), boom)
}

func TestRenderEmptyReport(t *testing.T) {
	report := models.Report{}
	body := renderReportHTML(report)
	assert.Contains(t, body, noExpiringText)
	assert.Contains(t, body, "过去一个月")
	assert.Contains(t, renderReportText(report), emptyText)
}
