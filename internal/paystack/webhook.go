package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const SignatureHeader = "X-Paystack-Signature"

const (
	EventChargeSuccess        = "charge.success"
	EventSubscriptionCreate   = "subscription.create"
	EventSubscriptionDisable  = "subscription.disable"
	EventInvoiceCreate        = "invoice.create"
	EventInvoiceUpdate        = "invoice.update"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventRefundProcessed      = "refund.processed"
)

// Sign computes the hex HMAC-SHA512 of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw, unparsed request body.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(payload, secret)))
}

type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("failed to parse webhook event: missing event type")
	}
	return &event, nil
}

// Domain reports data.domain, the mode ("live" or "test") the event came from.
func (e *Event) Domain() string {
	var d struct {
		Domain string `json:"domain"`
	}
	_ = json.Unmarshal(e.Data, &d)
	return d.Domain
}

// DecodeData unmarshals the event payload into out.
func (e *Event) DecodeData(out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", e.Event, err)
	}
	return nil
}

// ChargeData is the payload of charge.success.
type ChargeData struct {
	Transaction
	PaidAtCamel string `json:"paidAt"`
}

func (c *ChargeData) PaymentDate() string {
	if c.PaidAt != "" {
		return c.PaidAt
	}
	return c.PaidAtCamel
}

// SubscriptionData is the payload of subscription.create and subscription.disable.
type SubscriptionData struct {
	Domain           string `json:"domain"`
	Status           string `json:"status"`
	SubscriptionCode string `json:"subscription_code"`
	EmailToken       string `json:"email_token"`
	Amount           int64  `json:"amount"`
}

// InvoiceData is the payload of invoice.create, invoice.update and invoice.payment_failed.
type InvoiceData struct {
	Domain       string `json:"domain"`
	InvoiceCode  string `json:"invoice_code"`
	Amount       int64  `json:"amount"`
	Paid         bool   `json:"paid"`
	Status       string `json:"status"`
	Subscription struct {
		SubscriptionCode string `json:"subscription_code"`
	} `json:"subscription"`
	Transaction struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"transaction"`
}

// RefundData is the payload of refund.processed.
type RefundData struct {
	ID                   int64  `json:"id"`
	Domain               string `json:"domain"`
	Status               string `json:"status"`
	TransactionReference string `json:"transaction_reference"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
}
