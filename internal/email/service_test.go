package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(t *testing.T, host string) (*EmailService, *[]sentMail) {
	t.Helper()
	cfg := &config.Config{
		SMTPHost:     host,
		SMTPPort:     "587",
		SMTPUsername: "test@example.com",
		SMTPPassword: "password",
		FromEmail:    "noreply@example.com",
		FromName:     "Test Service",
	}
	service, err := NewEmailService(cfg, nil)
	require.NoError(t, err)

	var sent []sentMail
	service.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return service, &sent
}

func paidEntry() *gateway.Entry {
	return &gateway.Entry{
		ID:            42,
		Currency:      "NGN",
		PaymentStatus: gateway.StatusPaid,
		Meta:          map[string]string{gateway.MetaCustomerEmail: "ada@example.com"},
	}
}

func TestEmailServiceCreation(t *testing.T) {
	service, _ := newTestService(t, "smtp.gmail.com")

	if service.smtpHost != "smtp.gmail.com" {
		t.Errorf("Expected smtpHost 'smtp.gmail.com', got '%s'", service.smtpHost)
	}
	for _, key := range []string{"payment_receipt", "subscription_started", "payment_failed", "payment_refunded", "subscription_ended"} {
		assert.Contains(t, service.templates, key)
	}
}

func TestNotifySendsReceipt(t *testing.T) {
	service, sent := newTestService(t, "smtp.example.com")

	err := service.Notify(context.Background(), paidEntry(), &gateway.Action{
		Type:          gateway.ActionCompletePayment,
		EntryID:       42,
		TransactionID: "302961",
		Amount:        decimal.RequireFromString("1050"),
		Currency:      "NGN",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, []string{"ada@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Payment received - Thank you!")
	assert.Contains(t, mail.msg, "NGN 1050.00")
	assert.Contains(t, mail.msg, "302961")
	assert.Contains(t, mail.msg, "Submission #42")
}

func TestNotifySkips(t *testing.T) {
	t.Run("no smtp", func(t *testing.T) {
		service, sent := newTestService(t, "")
		require.NoError(t, service.Notify(context.Background(), paidEntry(), &gateway.Action{Type: gateway.ActionCompletePayment}))
		assert.Empty(t, *sent)
	})

	t.Run("no customer email", func(t *testing.T) {
		service, sent := newTestService(t, "smtp.example.com")
		entry := paidEntry()
		entry.Meta = nil
		require.NoError(t, service.Notify(context.Background(), entry, &gateway.Action{Type: gateway.ActionCompletePayment}))
		assert.Empty(t, *sent)
	})
}

func TestNotifySubscriptionEnded(t *testing.T) {
	service, sent := newTestService(t, "smtp.example.com")
	entry := paidEntry()
	entry.PaymentStatus = gateway.StatusExpired
	entry.TransactionID = "SUB9"

	require.NoError(t, service.Notify(context.Background(), entry, &gateway.Action{Type: gateway.ActionExpireSubscription, EntryID: 42}))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Your subscription SUB9 is now Expired.")
}

func TestNotifyReturnsSendError(t *testing.T) {
	service, _ := newTestService(t, "smtp.example.com")
	service.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := service.Notify(context.Background(), paidEntry(), &gateway.Action{Type: gateway.ActionRefundPayment})
	assert.ErrorContains(t, err, "failed to send email")
}
