package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"id":1,"domain":"test"}}`)
	secret := "sk_test_secret"
	valid := Sign(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{name: "valid", payload: payload, signature: valid, secret: secret, want: true},
		{name: "wrong secret", payload: payload, signature: valid, secret: "other", want: false},
		{name: "reserialized body", payload: []byte(`{"data":{"domain":"test","id":1},"event":"charge.success"}`), signature: valid, secret: secret, want: false},
		{name: "empty signature", payload: payload, signature: "", secret: secret, want: false},
		{name: "empty secret", payload: payload, signature: Sign(payload, ""), secret: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.payload, tt.signature, tt.secret))
		})
	}
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"event":"invoice.payment_failed","data":{"domain":"live","subscription":{"subscription_code":"SUB9"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventInvoicePaymentFailed, event.Event)
	assert.Equal(t, "live", event.Domain())

	var data InvoiceData
	require.NoError(t, event.DecodeData(&data))
	assert.Equal(t, "SUB9", data.Subscription.SubscriptionCode)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestChargeDataMetadataShapes(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantEntry     int64
		wantInvoice   bool
		wantPaymentAt string
	}{
		{name: "numeric entry id", body: `{"event":"charge.success","data":{"id":1,"metadata":{"entry_id":42},"paidAt":"2024-01-01"}}`, wantEntry: 42, wantPaymentAt: "2024-01-01"},
		{name: "string entry id", body: `{"event":"charge.success","data":{"id":1,"metadata":{"entry_id":"42"},"paid_at":"2024-01-02"}}`, wantEntry: 42, wantPaymentAt: "2024-01-02"},
		{name: "empty string metadata", body: `{"event":"charge.success","data":{"id":1,"metadata":""}}`},
		{name: "zero metadata", body: `{"event":"charge.success","data":{"id":1,"metadata":0}}`},
		{name: "invoice action", body: `{"event":"charge.success","data":{"id":1,"metadata":{"invoice_action":"create"}}}`, wantInvoice: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tt.body))
			require.NoError(t, err)

			var data ChargeData
			require.NoError(t, event.DecodeData(&data))
			assert.Equal(t, tt.wantEntry, data.Metadata.EntryID)
			assert.Equal(t, tt.wantInvoice, data.Metadata.InvoiceAction)
			assert.Equal(t, tt.wantPaymentAt, data.PaymentDate())
		})
	}
}
