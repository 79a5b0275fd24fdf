package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/Mekazstan/paystack-forms-gateway/internal/money"
	"go.uber.org/zap"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailService struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
	templates    map[string]*template.Template
	send         sendFunc
	logger       *zap.Logger
}

type EmailData struct {
	To          string
	Subject     string
	TemplateKey string
	Data        interface{}
}

func NewEmailService(cfg *config.Config, logger *zap.Logger) (*EmailService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &EmailService{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUsername: cfg.SMTPUsername,
		smtpPassword: cfg.SMTPPassword,
		fromEmail:    cfg.FromEmail,
		fromName:     cfg.FromName,
		templates:    make(map[string]*template.Template),
		send:         smtp.SendMail,
		logger:       logger,
	}

	if err := service.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return service, nil
}

func (s *EmailService) loadTemplates() error {
	for key, body := range paymentTemplates {
		tmpl, err := template.New(key).Parse(layoutTemplate)
		if err != nil {
			return err
		}
		if _, err := tmpl.New("content").Parse(body); err != nil {
			return fmt.Errorf("template %s: %w", key, err)
		}
		s.templates[key] = tmpl
	}
	return nil
}

func (s *EmailService) SendEmail(data EmailData) error {
	tmpl, ok := s.templates[data.TemplateKey]
	if !ok {
		return fmt.Errorf("template %s not found", data.TemplateKey)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	message := fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", s.fromName, s.fromEmail, data.To, data.Subject, body.String())

	var auth smtp.Auth
	if s.smtpUsername != "" {
		auth = smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)
	}
	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	if err := s.send(addr, auth, s.fromEmail, []string{data.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

type PaymentNotificationData struct {
	EntryID       int64
	Amount        string
	TransactionID string
	Status        string
	Date          string
}

// notification picks the template and subject for an applied action.
// Actions without a customer-facing message return ok=false.
func notification(t gateway.ActionType) (key, subject string, ok bool) {
	switch t {
	case gateway.ActionCompletePayment:
		return "payment_receipt", "Payment received - Thank you!", true
	case gateway.ActionCreateSubscription:
		return "subscription_started", "Your subscription is active", true
	case gateway.ActionAddSubscriptionPayment:
		return "payment_receipt", "Subscription payment received", true
	case gateway.ActionFailPayment, gateway.ActionFailSubscriptionPayment:
		return "payment_failed", "Your payment could not be completed", true
	case gateway.ActionRefundPayment:
		return "payment_refunded", "Your payment has been refunded", true
	case gateway.ActionCancelSubscription:
		return "subscription_ended", "Your subscription has been cancelled", true
	case gateway.ActionExpireSubscription:
		return "subscription_ended", "Your subscription has ended", true
	}
	return "", "", false
}

// Notify emails the entry's customer about an applied payment action. It is
// a no-op when SMTP is not configured or the entry has no customer email.
func (s *EmailService) Notify(ctx context.Context, entry *gateway.Entry, action *gateway.Action) error {
	if s.smtpHost == "" {
		return nil
	}
	to := entry.MetaValue(gateway.MetaCustomerEmail)
	if to == "" {
		s.logger.Debug("no customer email on entry, skipping notification", zap.Int64("entry_id", entry.ID))
		return nil
	}
	key, subject, ok := notification(action.Type)
	if !ok {
		return nil
	}

	currency := action.Currency
	if currency == "" {
		currency = entry.Currency
	}
	amount := action.Amount
	if amount.IsZero() {
		amount = entry.PaymentAmount
	}
	data := PaymentNotificationData{
		EntryID:       entry.ID,
		Amount:        money.Format(amount, currency),
		TransactionID: firstNonEmpty(action.TransactionID, action.SubscriptionID, entry.TransactionID),
		Status:        string(entry.PaymentStatus),
		Date:          time.Now().UTC().Format("2 Jan 2006"),
	}
	if err := s.SendEmail(EmailData{To: to, Subject: subject, TemplateKey: key, Data: data}); err != nil {
		return err
	}
	s.logger.Info("payment notification sent",
		zap.Int64("entry_id", entry.ID), zap.String("template", key))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var paymentTemplates = map[string]string{
	"payment_receipt": `<p>We received your payment of <strong>{{.Amount}}</strong>.</p>
<p>Reference: {{.TransactionID}}<br>Date: {{.Date}}</p>`,
	"subscription_started": `<p>Your subscription is now active.</p>
<p>Subscription: {{.TransactionID}}<br>Amount per cycle: {{.Amount}}</p>`,
	"payment_failed": `<p>We could not complete your payment of {{.Amount}}.</p>
<p>Please try again or contact us with reference {{.TransactionID}}.</p>`,
	"payment_refunded": `<p>Your payment of {{.Amount}} has been refunded.</p>
<p>Reference: {{.TransactionID}}</p>`,
	"subscription_ended": `<p>Your subscription {{.TransactionID}} is now {{.Status}}.</p>
<p>No further charges will be made.</p>`,
}

const layoutTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment update</title>
</head>
<body>
    {{template "content" .}}
    <p style="color:#888">Submission #{{.EntryID}}</p>
</body>
</html>
`
