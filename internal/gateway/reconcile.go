package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"go.uber.org/zap"
)

// Reconcile maps a verified webhook event onto the action the host should
// apply. A nil action with a nil error means there is nothing to do. Entries
// that cannot be resolved yield ErrEntryNotFound; processor failures are
// returned as they are.
func (s *Service) Reconcile(ctx context.Context, event *paystack.Event, mode config.Mode) (*Action, error) {
	log := s.logger.With(zap.String("event", event.Event))
	client := s.client(mode)

	var (
		action *Action
		err    error
	)
	switch event.Event {
	case paystack.EventChargeSuccess:
		action, err = s.reconcileCharge(ctx, event)
	case paystack.EventSubscriptionCreate:
		action, err = s.reconcileSubscriptionCreate(ctx, client, event)
	case paystack.EventSubscriptionDisable:
		action, err = s.reconcileSubscriptionDisable(ctx, client, event)
	case paystack.EventInvoiceCreate, paystack.EventInvoiceUpdate:
		action, err = s.reconcileInvoice(ctx, client, event)
	case paystack.EventInvoicePaymentFailed:
		action, err = s.reconcileInvoiceFailed(ctx, event)
	case paystack.EventRefundProcessed:
		action, err = s.reconcileRefund(ctx, event)
	default:
		log.Debug("ignoring unhandled event")
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			log.Warn("webhook cannot be processed", zap.Error(err))
		} else {
			log.Error("webhook cannot be processed", zap.Error(err))
		}
		return nil, err
	}

	if action == nil || action.EntryID == 0 {
		log.Debug("entry_id not set for callback action; no further processing required")
		return nil, nil
	}

	log.Info("webhook reconciled",
		zap.String("action_id", action.ID),
		zap.String("action", string(action.Type)),
		zap.Int64("entry_id", action.EntryID))
	return action, nil
}

func (s *Service) reconcileCharge(ctx context.Context, event *paystack.Event) (*Action, error) {
	var data paystack.ChargeData
	if err := event.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if data.ID == 0 || data.Metadata.InvoiceAction {
		return nil, nil
	}

	entryID := data.Metadata.EntryID
	if entryID == 0 && data.Reference != "" {
		id, found, err := s.entries.FindEntryByTransactionReference(ctx, data.Reference)
		if err != nil {
			return nil, err
		}
		if found {
			entryID = id
		}
	}
	if entryID == 0 {
		return nil, fmt.Errorf("%w: transaction %s", ErrEntryNotFound, data.Reference)
	}

	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	feed, err := s.activeFeedForEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		s.logger.Error("form no longer uses an active Paystack feed, aborting",
			zap.Int64("entry_id", entry.ID), zap.Int64("form_id", entry.FormID))
		return nil, nil
	}

	// The first invoice of a subscription is also reported as a charge; the
	// subscription events record the payment, only the card is kept here.
	if feed.IsSubscription() {
		s.setMeta(ctx, entry.ID, MetaTxAuthCode, data.Authorization.AuthorizationCode)
		return nil, nil
	}

	return &Action{
		ID:             chargeActionID(data.ID),
		Type:           ActionCompletePayment,
		EntryID:        entry.ID,
		TransactionID:  strconv.FormatInt(data.ID, 10),
		Amount:         s.importAmount(data.Amount, data.Currency, entry.Currency),
		Currency:       firstNonEmpty(data.Currency, entry.Currency),
		PaymentDate:    data.PaymentDate(),
		PaymentMethod:  PaymentMethod,
		ReadyToFulfill: !entry.IsFulfilled,
	}, nil
}

func (s *Service) reconcileSubscriptionCreate(ctx context.Context, client PaystackAPI, event *paystack.Event) (*Action, error) {
	var data paystack.SubscriptionData
	if err := event.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	code := data.SubscriptionCode

	sub, err := client.GetSubscription(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSubscriptionNotFound, code, err)
	}

	var (
		first   paystack.Invoice
		entryID int64
	)
	if len(sub.Invoices) > 0 {
		first = sub.Invoices[0]
		if first.Status == "success" {
			id, found, err := s.entries.FindEntryByTransactionReference(ctx, first.Reference)
			if err != nil {
				return nil, err
			}
			if found {
				entryID = id
			}
		}
	}
	if entryID == 0 {
		return nil, fmt.Errorf("%w: subscription %s", ErrEntryNotFound, code)
	}

	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	s.setMeta(ctx, entry.ID, MetaEmailToken, data.EmailToken)

	action := &Action{
		ID:             code + "_" + paystack.EventSubscriptionCreate,
		Type:           ActionCreateSubscription,
		EntryID:        entry.ID,
		SubscriptionID: code,
		Amount:         s.importAmount(data.Amount, entry.Currency),
		Currency:       entry.Currency,
		PaymentMethod:  PaymentMethod,
		ReadyToFulfill: !entry.IsFulfilled,
	}
	if first.ID != 0 {
		action.AddSubscriptionPayment = &Action{
			ID:             subscriptionPaymentActionID(first.ID),
			Type:           ActionAddSubscriptionPayment,
			EntryID:        entry.ID,
			SubscriptionID: firstNonEmpty(sub.SubscriptionCode, code),
			TransactionID:  strconv.FormatInt(first.ID, 10),
			Amount:         s.importAmount(first.Amount, entry.Currency),
			Currency:       entry.Currency,
			PaymentDate:    first.PaidAt,
			PaymentMethod:  PaymentMethod,
		}
	}
	return action, nil
}

func (s *Service) reconcileSubscriptionDisable(ctx context.Context, client PaystackAPI, event *paystack.Event) (*Action, error) {
	var data paystack.SubscriptionData
	if err := event.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	code := data.SubscriptionCode

	entry, err := s.entryBySubscription(ctx, code)
	if err != nil {
		return nil, err
	}

	if entry.PaymentStatus.Ended() {
		s.logger.Info("subscription is no longer active",
			zap.Int64("entry_id", entry.ID), zap.String("status", string(entry.PaymentStatus)))
		return nil, nil
	}

	actionType := ActionCancelSubscription
	sub, err := client.GetSubscription(ctx, code)
	if err != nil {
		// a disable request must not be dropped because the lookup failed
		s.logger.Warn("subscription details not found, cancelling",
			zap.String("subscription", code), zap.Error(err))
	} else if sub.InvoiceLimit > 0 && sub.PaidInvoices() >= sub.InvoiceLimit {
		actionType = ActionExpireSubscription
	}

	return &Action{
		ID:             code + "_" + paystack.EventSubscriptionDisable,
		Type:           actionType,
		EntryID:        entry.ID,
		SubscriptionID: code,
		Currency:       entry.Currency,
		PaymentMethod:  PaymentMethod,
	}, nil
}

func (s *Service) reconcileInvoice(ctx context.Context, client PaystackAPI, event *paystack.Event) (*Action, error) {
	var data paystack.InvoiceData
	if err := event.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	code := data.Subscription.SubscriptionCode

	entry, err := s.entryBySubscription(ctx, code)
	if err != nil {
		return nil, err
	}

	sub, err := client.GetSubscription(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSubscriptionNotFound, code, err)
	}

	ref := data.Transaction.Reference
	var (
		txID   int64
		amount int64
		status string
		paidAt string
	)
	if inv, ok := sub.InvoiceByReference(ref); ok {
		txID, amount, status, paidAt = inv.ID, inv.Amount, inv.Status, inv.PaidAt
	} else if ref != "" {
		tx, err := client.VerifyTransaction(ctx, ref)
		if err != nil {
			return nil, err
		}
		txID, amount, status, paidAt = tx.ID, tx.Amount, tx.Status, tx.PaidAt
	}

	if txID == 0 || (status != "" && status != "success") {
		s.logger.Debug("invoice has no successful charge yet",
			zap.String("subscription", code), zap.String("reference", ref), zap.String("status", status))
		return nil, nil
	}

	return &Action{
		ID:             subscriptionPaymentActionID(txID),
		Type:           ActionAddSubscriptionPayment,
		EntryID:        entry.ID,
		SubscriptionID: firstNonEmpty(entry.TransactionID, code),
		TransactionID:  strconv.FormatInt(txID, 10),
		Amount:         s.importAmount(amount, entry.Currency),
		Currency:       entry.Currency,
		PaymentDate:    paidAt,
		PaymentMethod:  PaymentMethod,
	}, nil
}

func (s *Service) reconcileInvoiceFailed(ctx context.Context, event *paystack.Event) (*Action, error) {
	var data paystack.InvoiceData
	if err := event.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	code := data.Subscription.SubscriptionCode

	entry, err := s.entryBySubscription(ctx, code)
	if err != nil {
		return nil, err
	}

	return &Action{
		ID:             code + "_" + data.InvoiceCode + "_" + paystack.EventInvoicePaymentFailed,
		Type:           ActionFailSubscriptionPayment,
		EntryID:        entry.ID,
		SubscriptionID: code,
		Amount:         s.importAmount(data.Amount, entry.Currency),
		Currency:       entry.Currency,
		PaymentMethod:  PaymentMethod,
	}, nil
}

func (s *Service) reconcileRefund(ctx context.Context, event *paystack.Event) (*Action, error) {
	var data paystack.RefundData
	if err := event.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if data.ID == 0 || data.TransactionReference == "" {
		return nil, nil
	}

	entryID, found, err := s.entries.FindEntryByTransactionReference(ctx, data.TransactionReference)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: transaction %s", ErrEntryNotFound, data.TransactionReference)
	}

	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	return &Action{
		ID:            strconv.FormatInt(data.ID, 10) + "_" + paystack.EventRefundProcessed,
		Type:          ActionRefundPayment,
		EntryID:       entry.ID,
		TransactionID: data.TransactionReference,
		Amount:        s.importAmount(data.Amount, data.Currency, entry.Currency),
		Currency:      firstNonEmpty(data.Currency, entry.Currency),
		PaymentMethod: PaymentMethod,
	}, nil
}

// entryBySubscription resolves the entry whose transaction_id is the
// subscription code.
func (s *Service) entryBySubscription(ctx context.Context, code string) (*Entry, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing subscription code", ErrEntryNotFound)
	}
	id, found, err := s.entries.FindEntryByTransactionID(ctx, code)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: subscription %s", ErrEntryNotFound, code)
	}
	return s.loadEntry(ctx, id)
}

func (s *Service) loadEntry(ctx context.Context, id int64) (*Entry, error) {
	entry, err := s.entries.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrEntryNotFound, id)
		}
		return nil, fmt.Errorf("failed to load entry %d: %w", id, err)
	}
	return entry, nil
}

func chargeActionID(chargeID int64) string {
	return strconv.FormatInt(chargeID, 10) + "_" + paystack.EventChargeSuccess
}

func subscriptionPaymentActionID(txID int64) string {
	return strconv.FormatInt(txID, 10) + "_" + string(ActionAddSubscriptionPayment)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
