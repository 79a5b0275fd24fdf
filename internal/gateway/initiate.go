package gateway

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Mekazstan/paystack-forms-gateway/internal/money"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"github.com/Mekazstan/paystack-forms-gateway/internal/reference"
	"go.uber.org/zap"
)

const (
	ReturnQueryParam    = "paystack_return"
	maxCustomFieldValue = 500
	pluginName          = "pstk-gravityforms"
)

type InitiateResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Initiate opens a hosted checkout for entry and returns where to send the
// customer. Any failure is reported as ErrDeclined, and a
// settled entry is never reopened. Once the entry has been
// marked Processing it stays that way on failure.
func (s *Service) Initiate(ctx context.Context, feed *Feed, sub Submission, form *Form, entry *Entry) (*InitiateResult, error) {
	log := s.logger.With(zap.Int64("entry_id", entry.ID), zap.Int64("feed_id", feed.ID))

	if !entry.PaymentStatus.Payable() {
		log.Warn("checkout refused: entry already settled", zap.String("status", string(entry.PaymentStatus)))
		return nil, fmt.Errorf("%w: %w", ErrDeclined, ErrEntrySettled)
	}

	if err := s.ValidateFeed(feed); err != nil {
		log.Warn("checkout refused", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	currency := entry.Currency
	amount, err := money.ToMinor(sub.PaymentAmount, currency)
	if err != nil {
		log.Warn("checkout refused", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}

	email := strings.TrimSpace(entry.Value(feed.Meta.Customer.Email))
	if email == "" {
		log.Warn("checkout refused: no customer email")
		return nil, fmt.Errorf("%w: customer email is required", ErrDeclined)
	}

	mode := s.resolveMode(feed)
	client := s.client(mode)
	txRef := s.newReference(entry.ID)

	if err := s.entries.UpdateEntryField(ctx, entry.ID, FieldPaymentStatus, StatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to mark entry processing: %w", err)
	}
	s.setMeta(ctx, entry.ID, MetaFeedID, strconv.FormatInt(feed.ID, 10))
	s.setMeta(ctx, entry.ID, MetaCustomerEmail, email)

	params := paystack.InitializeParams{
		Email:       email,
		Amount:      amount,
		Currency:    currency,
		Reference:   txRef,
		CallbackURL: s.returnURL(reference.IDs{EntryID: entry.ID, FeedID: feed.ID, FormID: form.ID}),
		Description: fmt.Sprintf("%s (transaction: %s)", feed.Name, txRef),
		Metadata: paystack.TransactionMetadata{
			EntryID:      entry.ID,
			SiteURL:      s.cfg.AppURL,
			IPAddress:    sub.IPAddress,
			CustomFields: customFields(feed, entry),
		},
	}

	if feed.IsSubscription() {
		plan, err := s.createPlan(ctx, client, feed, sub.PaymentAmount, currency)
		if err != nil {
			log.Error("failed to create plan, checkout aborted", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
		}
		params.Plan = plan.PlanCode
		params.InvoiceLimit = parseInvoiceLimit(sub.RecurringTimes)
		params.Channels = []string{"card"}
		s.setMeta(ctx, entry.ID, MetaPlanCode, plan.PlanCode)
	}

	auth, err := client.InitializeTransaction(ctx, params)
	if err != nil {
		log.Error("failed to initialize transaction; entry left processing",
			zap.String("reference", txRef), zap.String("mode", string(mode)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	if err := s.entries.UpdateEntryField(ctx, entry.ID, FieldTransactionID, auth.Reference); err != nil {
		return nil, fmt.Errorf("failed to store transaction id: %w", err)
	}
	s.setMeta(ctx, entry.ID, MetaTxReference, auth.Reference)
	s.setMeta(ctx, entry.ID, MetaTxAccessCode, auth.AccessCode)
	s.setMeta(ctx, entry.ID, MetaTxAuthURL, auth.AuthorizationURL)

	log.Info("checkout initialized",
		zap.String("reference", auth.Reference), zap.String("authorization_url", auth.AuthorizationURL))

	return &InitiateResult{
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Reference:        auth.Reference,
	}, nil
}

// setMeta writes entry meta, logging instead of failing the caller.
func (s *Service) setMeta(ctx context.Context, entryID int64, key, value string) {
	if err := s.entries.UpdateEntryMeta(ctx, entryID, key, value); err != nil {
		s.logger.Error("failed to update entry meta",
			zap.Int64("entry_id", entryID), zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) returnURL(ids reference.IDs) string {
	q := url.Values{}
	q.Set(ReturnQueryParam, s.codec.Encode(ids))
	return s.cfg.AppURL + "/paystack/return?" + q.Encode()
}

// parseInvoiceLimit returns the submitted recurring times when it is a finite
// count above one, else 0 (no limit sent).
func parseInvoiceLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "infinite") {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 1 {
		return 0
	}
	return n
}

func customFields(feed *Feed, entry *Entry) []paystack.CustomField {
	fields := make([]paystack.CustomField, 0, len(feed.Meta.CustomMeta)+1)
	for _, m := range feed.Meta.CustomMeta {
		if m.Key == "" || m.FieldID == "" {
			continue
		}
		value := entry.Value(m.FieldID)
		if value == "" {
			continue
		}
		if r := []rune(value); len(r) > maxCustomFieldValue {
			value = string(r[:maxCustomFieldValue])
		}
		fields = append(fields, paystack.CustomField{
			DisplayName:  m.Key,
			VariableName: slug(m.Key),
			Value:        value,
		})
	}
	return append(fields, paystack.CustomField{
		DisplayName:  "Plugin Name",
		VariableName: "plugin_name",
		Value:        pluginName,
	})
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
