package paystack

import (
	"encoding/json"
	"strconv"
	"strings"
)

type InitializeParams struct {
	Email        string              `json:"email"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency,omitempty"`
	Reference    string              `json:"reference"`
	CallbackURL  string              `json:"callback_url"`
	Description  string              `json:"description,omitempty"`
	Plan         string              `json:"plan,omitempty"`
	InvoiceLimit int                 `json:"invoice_limit,omitempty"`
	Channels     []string            `json:"channels,omitempty"`
	Metadata     TransactionMetadata `json:"metadata"`
}

type TransactionMetadata struct {
	EntryID      int64         `json:"entry_id"`
	SiteURL      string        `json:"site_url,omitempty"`
	IPAddress    string        `json:"ip_address,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
}

type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type CardAuthorization struct {
	AuthorizationCode string `json:"authorization_code"`
	Channel           string `json:"channel"`
	Last4             string `json:"last4"`
	Reusable          bool   `json:"reusable"`
}

type Transaction struct {
	ID            int64             `json:"id"`
	Domain        string            `json:"domain"`
	Status        string            `json:"status"`
	Reference     string            `json:"reference"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaidAt        string            `json:"paid_at"`
	GatewayResp   string            `json:"gateway_response"`
	Authorization CardAuthorization `json:"authorization"`
	Metadata      Metadata          `json:"metadata"`
}

func (t *Transaction) Succeeded() bool {
	return t != nil && t.Status == "success"
}

type PlanParams struct {
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	Interval     string `json:"interval"`
	Currency     string `json:"currency,omitempty"`
	InvoiceLimit int    `json:"invoice_limit"`
	SendInvoices bool   `json:"send_invoices"`
}

type Plan struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PlanCode     string `json:"plan_code"`
	Amount       int64  `json:"amount"`
	Interval     string `json:"interval"`
	Currency     string `json:"currency"`
	InvoiceLimit int    `json:"invoice_limit"`
	SendInvoices bool   `json:"send_invoices"`
}

type Subscription struct {
	ID               int64     `json:"id"`
	Domain           string    `json:"domain"`
	Status           string    `json:"status"`
	SubscriptionCode string    `json:"subscription_code"`
	EmailToken       string    `json:"email_token"`
	Amount           int64     `json:"amount"`
	InvoiceLimit     int       `json:"invoice_limit"`
	Invoices         []Invoice `json:"invoices"`
}

func (s *Subscription) Active() bool {
	return s.Status == "active"
}

// PaidInvoices counts invoices that were charged successfully.
func (s *Subscription) PaidInvoices() int {
	n := 0
	for _, inv := range s.Invoices {
		if inv.Status == "success" {
			n++
		}
	}
	return n
}

// InvoiceByReference finds the invoice charged under reference.
func (s *Subscription) InvoiceByReference(reference string) (Invoice, bool) {
	if reference == "" {
		return Invoice{}, false
	}
	for _, inv := range s.Invoices {
		if inv.Reference == reference {
			return inv, true
		}
	}
	return Invoice{}, false
}

type Invoice struct {
	ID        int64  `json:"id"`
	Domain    string `json:"domain"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at"`
}

// Metadata is the subset of transaction metadata read back from the processor.
// The processor echoes whatever was sent, and returns "" or 0 when nothing was,
// so decoding never fails on shape.
type Metadata struct {
	EntryID       int64
	InvoiceAction bool
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	*m = Metadata{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return nil
	}

	if raw, ok := fields["entry_id"]; ok {
		m.EntryID = parseID(raw)
	}
	if raw, ok := fields["invoice_action"]; ok && string(raw) != "null" {
		m.InvoiceAction = true
	}
	return nil
}

// parseID accepts 42 and "42".
func parseID(raw json.RawMessage) int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
