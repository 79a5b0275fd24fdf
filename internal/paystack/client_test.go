package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("sk_test_secret", "pk_test_public",
		WithBaseURL(srv.URL+"/"),
		WithHeaders(map[string]string{"X-Site": "forms", "Authorization": "ignored"}),
	), srv
}

func TestSendAttachesAuthAndBody(t *testing.T) {
	var gotAuth, gotSite, gotMethod, gotPath string
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSite = r.Header.Get("X-Site")
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://pay/x","access_code":"AC1","reference":"gf-42-abc"}}`))
	})

	auth, err := client.InitializeTransaction(context.Background(), InitializeParams{
		Email:     "a@b.c",
		Amount:    500000,
		Currency:  "NGN",
		Reference: "gf-42-abc",
		Metadata:  TransactionMetadata{EntryID: 42},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	assert.Equal(t, "forms", gotSite)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/transaction/initialize", gotPath)
	assert.Equal(t, float64(500000), gotBody["amount"])
	assert.Equal(t, "https://pay/x", auth.AuthorizationURL)
	assert.Equal(t, "AC1", auth.AccessCode)
	assert.Equal(t, "gf-42-abc", auth.Reference)
}

func TestSendReturnsAPIErrorVerbatim(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "status false", body: `{"status":false,"message":"Invalid key"}`},
		{name: "error flag", body: `{"status":true,"error":"boom","message":"Invalid key"}`},
		{name: "missing status", body: `{"message":"Invalid key"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			})

			_, err := client.Send(context.Background(), http.MethodGet, "plan/PLN_1", nil)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, "Invalid key", apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		})
	}
}

func TestSendReturnsProtocolErrorOnUndecodableBody(t *testing.T) {
	for _, body := range []string{"<html>oops</html>", "null", "", "[1,2]"} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		_, err := client.Send(context.Background(), http.MethodGet, "transaction/verify/x", nil)

		var protoErr *ProtocolError
		assert.True(t, errors.As(err, &protoErr), "body %q: got %v", body, err)
	}
}

func TestSendReturnsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient("sk", "pk", WithBaseURL(url))
	_, err := client.Send(context.Background(), http.MethodPost, "plan", map[string]string{"name": "x"})

	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr), "got %v", err)
}

func TestSendEncodesGetParamsAsQuery(t *testing.T) {
	var gotQuery string
	var gotBody []byte
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"status":true,"message":"ok","data":[]}`))
	})

	_, err := client.Send(context.Background(), "get", "plan", map[string]string{"perPage": "10"})
	require.NoError(t, err)
	assert.Equal(t, "perPage=10", gotQuery)
	assert.Empty(t, gotBody)
}

func TestVerifyTransaction(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"id":9001,"status":"success","reference":"gf-42-abc","amount":500000,"currency":"NGN","metadata":{"entry_id":"42"}}}`))
	})

	tx, err := client.VerifyTransaction(context.Background(), "gf-42-abc")
	require.NoError(t, err)
	assert.Equal(t, "/transaction/verify/gf-42-abc", gotPath)
	assert.True(t, tx.Succeeded())
	assert.Equal(t, int64(9001), tx.ID)
	assert.Equal(t, int64(42), tx.Metadata.EntryID)
}

func TestGetSubscription(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscription/SUB9", r.URL.Path)
		w.Write([]byte(`{"status":true,"message":"ok","data":{"subscription_code":"SUB9","status":"active","invoice_limit":3,"invoices":[{"id":1,"status":"success","reference":"r1","amount":100},{"id":2,"status":"failed","reference":"r2","amount":100},{"id":3,"status":"success","reference":"r3","amount":100}]}}`))
	})

	sub, err := client.GetSubscription(context.Background(), "SUB9")
	require.NoError(t, err)
	assert.True(t, sub.Active())
	assert.Equal(t, 2, sub.PaidInvoices())

	inv, ok := sub.InvoiceByReference("r3")
	assert.True(t, ok)
	assert.Equal(t, int64(3), inv.ID)

	_, ok = sub.InvoiceByReference("missing")
	assert.False(t, ok)
}

func TestDisableSubscription(t *testing.T) {
	var got map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscription/disable", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":true,"message":"Subscription disabled successfully"}`))
	})

	require.NoError(t, client.DisableSubscription(context.Background(), "SUB9", "tok"))
	assert.Equal(t, map[string]string{"code": "SUB9", "token": "tok"}, got)
}

func TestLogTransactionSuccessIsFireAndForget(t *testing.T) {
	received := make(chan map[string]string, 1)
	tracker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "/log/charge_success", r.URL.Path)
		received <- body
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer tracker.Close()

	client := NewClient("sk", "pk_test_public", WithTrackerURL(tracker.URL+"/"))
	client.LogTransactionSuccess("gf-42-abc")

	select {
	case body := <-received:
		assert.Equal(t, "pk_test_public", body["public_key"])
		assert.Equal(t, "gf-42-abc", body["transaction_reference"])
		assert.Equal(t, pluginName, body["plugin_name"])
	case <-time.After(5 * time.Second):
		t.Fatal("tracker was not called")
	}
}
