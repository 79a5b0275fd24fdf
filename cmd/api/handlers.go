package main

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/Mekazstan/paystack-forms-gateway/internal/money"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"go.uber.org/zap"
)

type paymentGateway interface {
	Initiate(ctx context.Context, feed *gateway.Feed, sub gateway.Submission, form *gateway.Form, entry *gateway.Entry) (*gateway.InitiateResult, error)
	HandleReturn(ctx context.Context, encodedRef, txReference string) (*gateway.ReturnResult, error)
	ReceiveWebhook(ctx context.Context, payload []byte, signature string) (*gateway.Action, error)
	CancelSubscription(ctx context.Context, entry *gateway.Entry, feed *gateway.Feed) (*gateway.Action, error)
	WebhookURL(feedID int64) string
}

type recordStore interface {
	GetEntry(ctx context.Context, id int64) (*gateway.Entry, error)
	GetFeed(ctx context.Context, id int64) (*gateway.Feed, error)
	GetFeedForForm(ctx context.Context, formID int64) (*gateway.Feed, error)
	GetForm(ctx context.Context, id int64) (*gateway.Form, error)
}

type actionApplier interface {
	Apply(ctx context.Context, action *gateway.Action) (bool, error)
}

func (cfg *apiConfig) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	type parameters struct {
		FeedID         int64  `json:"feed_id" validate:"gte=0"`
		PaymentAmount  string `json:"payment_amount" validate:"required,max=32"`
		RecurringTimes string `json:"recurring_times" validate:"omitempty,max=16"`
	}

	entry, ok := cfg.entryFromPath(w, r)
	if !ok {
		return
	}
	if entry.IsSpam() {
		respondWithError(w, http.StatusUnprocessableEntity, ApiError{
			Code:    "ENTRY_SPAM",
			Message: "Entry is marked as spam",
		})
		return
	}

	var params parameters
	if apiErr := decodeJSON(w, r, cfg.validate, &params); apiErr != nil {
		respondWithError(w, http.StatusBadRequest, *apiErr)
		return
	}

	amount, err := money.Parse(params.PaymentAmount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ApiError{
			Code:    "INVALID_AMOUNT",
			Message: "payment_amount must be a decimal number",
		})
		return
	}

	var feed *gateway.Feed
	if params.FeedID > 0 {
		feed, err = cfg.store.GetFeed(r.Context(), params.FeedID)
	} else {
		feed, err = cfg.store.GetFeedForForm(r.Context(), entry.FormID)
	}
	if errors.Is(err, gateway.ErrFeedNotFound) {
		respondWithError(w, http.StatusNotFound, ApiError{
			Code:    "FEED_NOT_FOUND",
			Message: "No payment feed is configured for this form",
		})
		return
	}
	if err != nil {
		cfg.internalError(w, r, "failed to load feed", err)
		return
	}
	if feed.FormID != entry.FormID {
		respondWithError(w, http.StatusBadRequest, ApiError{
			Code:    "FEED_MISMATCH",
			Message: "Feed does not belong to the entry's form",
		})
		return
	}
	if !feed.Active {
		respondWithError(w, http.StatusConflict, ApiError{
			Code:    "FEED_INACTIVE",
			Message: "Payment feed is inactive",
		})
		return
	}

	form, err := cfg.store.GetForm(r.Context(), entry.FormID)
	if err != nil {
		cfg.internalError(w, r, "failed to load form", err)
		return
	}

	result, err := cfg.gateway.Initiate(r.Context(), feed, gateway.Submission{
		PaymentAmount:  amount,
		RecurringTimes: params.RecurringTimes,
		IPAddress:      clientIP(r),
	}, form, entry)
	if errors.Is(err, gateway.ErrEntrySettled) {
		respondWithError(w, http.StatusConflict, ApiError{
			Code:    "ENTRY_SETTLED",
			Message: "This entry has already been paid or has an active subscription",
		})
		return
	}
	if errors.Is(err, gateway.ErrDeclined) {
		respondWithError(w, http.StatusPaymentRequired, ApiError{
			Code:    "PAYMENT_DECLINED",
			Message: "We could not start the payment. Please try again.",
		})
		return
	}
	if err != nil {
		cfg.internalError(w, r, "failed to initiate checkout", err)
		return
	}

	respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"authorization_url": result.AuthorizationURL,
			"access_code":       result.AccessCode,
			"reference":         result.Reference,
		},
	})
}

var confirmationPage = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body><p>{{.Message}}</p></body>
</html>
`))

const returnFailureMessage = "We could not confirm your payment. If you were charged, please contact us."

// returnHandler serves the customer's redirect back from the hosted checkout.
func (cfg *apiConfig) returnHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	txReference := query.Get("reference")
	if txReference == "" {
		txReference = query.Get("trxref")
	}

	result, err := cfg.gateway.HandleReturn(r.Context(), query.Get(gateway.ReturnQueryParam), txReference)
	if err != nil {
		cfg.logger.Warn("payment return not confirmed",
			zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		cfg.renderPage(w, http.StatusBadRequest, "Payment", returnFailureMessage)
		return
	}

	if result.Confirmation.RedirectURL != "" {
		http.Redirect(w, r, result.Confirmation.RedirectURL, http.StatusFound)
		return
	}
	cfg.renderPage(w, http.StatusOK, result.Form.Title, result.Confirmation.Message)
}

func (cfg *apiConfig) renderPage(w http.ResponseWriter, code int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := confirmationPage.Execute(w, map[string]string{"Title": title, "Message": message}); err != nil {
		cfg.logger.Error("failed to render page", zap.Error(err))
	}
}

// webhookHandler must read the body untouched; the signature covers the raw bytes.
func (cfg *apiConfig) webhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ApiError{
			Code:    "INVALID_WEBHOOK",
			Message: "Could not read webhook body",
		})
		return
	}

	action, err := cfg.gateway.ReceiveWebhook(r.Context(), payload, r.Header.Get(paystack.SignatureHeader))
	if errors.Is(err, gateway.ErrEntryNotFound) {
		// foreign or stale events are acknowledged so Paystack stops redelivering
		cfg.logger.Info("webhook event matches no entry", zap.Error(err))
		respondWithJSON(w, http.StatusOK, ApiResponse{
			Success: true,
			Data:    map[string]interface{}{"applied": false, "reason": "entry_not_found"},
		})
		return
	}
	if err != nil {
		code, apiErr := webhookError(err)
		if code >= 500 {
			cfg.logger.Error("webhook processing failed", zap.Error(err))
		}
		respondWithError(w, code, apiErr)
		return
	}

	data := map[string]interface{}{"applied": false}
	if action != nil {
		applied, err := cfg.applier.Apply(r.Context(), action)
		if err != nil {
			// a non-2xx makes Paystack redeliver the event
			cfg.internalError(w, r, "failed to apply webhook action", err)
			return
		}
		data["action"] = action.Type
		data["entry_id"] = action.EntryID
		data["applied"] = applied
	}

	respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data})
}

func webhookError(err error) (int, ApiError) {
	switch {
	case errors.Is(err, gateway.ErrWebhooksDisabled):
		return http.StatusForbidden, ApiError{Code: "WEBHOOKS_DISABLED", Message: "Webhooks are disabled"}
	case errors.Is(err, gateway.ErrInvalidSignature):
		return http.StatusUnauthorized, ApiError{Code: "INVALID_SIGNATURE", Message: "Invalid webhook signature"}
	case errors.Is(err, gateway.ErrMalformedEvent):
		return http.StatusBadRequest, ApiError{Code: "INVALID_WEBHOOK", Message: "Invalid webhook payload"}
	case errors.Is(err, gateway.ErrSubscriptionNotFound):
		return http.StatusNotFound, ApiError{Code: "SUBSCRIPTION_NOT_FOUND", Message: "Subscription not found"}
	case isProcessorError(err):
		return http.StatusBadGateway, ApiError{Code: "PROCESSOR_ERROR", Message: "Payment processor request failed"}
	}
	return http.StatusInternalServerError, ApiError{Code: "INTERNAL_ERROR", Message: "Failed to process webhook"}
}

func isProcessorError(err error) bool {
	var (
		connErr  *paystack.ConnectionError
		apiErr   *paystack.APIError
		protoErr *paystack.ProtocolError
	)
	return errors.As(err, &connErr) || errors.As(err, &apiErr) || errors.As(err, &protoErr)
}

func (cfg *apiConfig) cancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	entry, ok := cfg.entryFromPath(w, r)
	if !ok {
		return
	}

	feed, err := cfg.feedForEntry(r.Context(), entry)
	if errors.Is(err, gateway.ErrFeedNotFound) {
		respondWithError(w, http.StatusNotFound, ApiError{
			Code:    "FEED_NOT_FOUND",
			Message: "No payment feed found for this entry",
		})
		return
	}
	if err != nil {
		cfg.internalError(w, r, "failed to load feed", err)
		return
	}
	if !feed.IsSubscription() {
		respondWithError(w, http.StatusConflict, ApiError{
			Code:    "NOT_A_SUBSCRIPTION",
			Message: "Entry was not paid through a subscription feed",
		})
		return
	}

	action, err := cfg.gateway.CancelSubscription(r.Context(), entry, feed)
	switch {
	case errors.Is(err, gateway.ErrNoSubscription):
		respondWithError(w, http.StatusConflict, ApiError{
			Code:    "NO_SUBSCRIPTION",
			Message: "Entry has no subscription to cancel",
		})
		return
	case errors.Is(err, gateway.ErrSubscriptionNotFound):
		respondWithError(w, http.StatusNotFound, ApiError{
			Code:    "SUBSCRIPTION_NOT_FOUND",
			Message: "Subscription not found at Paystack",
		})
		return
	case isProcessorError(err):
		cfg.logger.Error("failed to cancel subscription", zap.Int64("entry_id", entry.ID), zap.Error(err))
		respondWithError(w, http.StatusBadGateway, ApiError{
			Code:    "PROCESSOR_ERROR",
			Message: "Paystack could not cancel the subscription",
		})
		return
	case err != nil:
		cfg.internalError(w, r, "failed to cancel subscription", err)
		return
	}

	applied, err := cfg.applier.Apply(r.Context(), action)
	if err != nil {
		cfg.internalError(w, r, "failed to record cancellation", err)
		return
	}

	respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "Subscription cancelled",
		Data: map[string]interface{}{
			"entry_id":        entry.ID,
			"subscription_id": action.SubscriptionID,
			"applied":         applied,
		},
	})
}

func (cfg *apiConfig) webhookURLHandler(w http.ResponseWriter, r *http.Request) {
	var feedID int64
	if raw := r.URL.Query().Get("feed_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			respondWithError(w, http.StatusBadRequest, ApiError{
				Code:    "INVALID_FEED_ID",
				Message: "feed_id must be a positive integer",
			})
			return
		}
		feedID = id
	}

	respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"url": cfg.gateway.WebhookURL(feedID)},
	})
}

func (cfg *apiConfig) healthHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(cfg.health))
	code := http.StatusOK
	for name, ping := range cfg.health {
		if err := ping(r.Context()); err != nil {
			checks[name] = "down"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	respondWithJSON(w, code, ApiResponse{Success: code == http.StatusOK, Data: checks})
}

func (cfg *apiConfig) entryFromPath(w http.ResponseWriter, r *http.Request) (*gateway.Entry, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, ApiError{
			Code:    "INVALID_ENTRY_ID",
			Message: "Entry id must be a positive integer",
		})
		return nil, false
	}

	entry, err := cfg.store.GetEntry(r.Context(), id)
	if errors.Is(err, gateway.ErrEntryNotFound) {
		respondWithError(w, http.StatusNotFound, ApiError{
			Code:    "ENTRY_NOT_FOUND",
			Message: "Entry not found",
		})
		return nil, false
	}
	if err != nil {
		cfg.internalError(w, r, "failed to load entry", err)
		return nil, false
	}
	return entry, true
}

// feedForEntry prefers the feed recorded at checkout over the form's feed.
func (cfg *apiConfig) feedForEntry(ctx context.Context, entry *gateway.Entry) (*gateway.Feed, error) {
	if id, err := strconv.ParseInt(entry.MetaValue(gateway.MetaFeedID), 10, 64); err == nil && id > 0 {
		feed, err := cfg.store.GetFeed(ctx, id)
		if !errors.Is(err, gateway.ErrFeedNotFound) {
			return feed, err
		}
	}
	return cfg.store.GetFeedForForm(ctx, entry.FormID)
}

func (cfg *apiConfig) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	cfg.logger.Error(msg,
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	respondWithError(w, http.StatusInternalServerError, ApiError{
		Code:    "INTERNAL_ERROR",
		Message: "An unexpected error occurred",
	})
}
