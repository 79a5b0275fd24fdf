// Package ledger applies reconciled payment actions to entries exactly once.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"go.uber.org/zap"
)

type Store interface {
	GetEntry(ctx context.Context, id int64) (*gateway.Entry, error)
	UpdateEntryField(ctx context.Context, id int64, field gateway.EntryField, value any) error
	// RecordPayment stores p unless a payment with the same entry and
	// transaction id exists, and reports whether it was new.
	RecordPayment(ctx context.Context, p gateway.Payment) (bool, error)
}

// Notifier is told about every action that changed an entry.
type Notifier interface {
	Notify(ctx context.Context, entry *gateway.Entry, action *gateway.Action) error
}

type Applier struct {
	store    Store
	dedupe   Deduper
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewApplier(store Store, dedupe Deduper, notifier Notifier, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{
		store:    store,
		dedupe:   dedupe,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Apply applies action and any nested subscription payment. It reports
// whether the entry changed. A redelivered action is skipped; a failed one
// releases its claim so the next delivery retries it.
func (a *Applier) Apply(ctx context.Context, action *gateway.Action) (bool, error) {
	if action == nil || action.EntryID == 0 {
		return false, nil
	}
	log := a.logger.With(
		zap.String("action_id", action.ID),
		zap.String("action", string(action.Type)),
		zap.Int64("entry_id", action.EntryID),
	)

	if action.ID != "" && a.dedupe != nil {
		claimed, err := a.dedupe.Acquire(ctx, action.ID)
		if err != nil {
			return false, err
		}
		if !claimed {
			log.Info("action already applied, skipping")
			return false, nil
		}
	}

	entry, changed, err := a.apply(ctx, action)
	if err != nil {
		if action.ID != "" && a.dedupe != nil {
			if relErr := a.dedupe.Release(ctx, action.ID); relErr != nil {
				log.Error("failed to release action claim", zap.Error(relErr))
			}
		}
		return false, err
	}

	if changed {
		log.Info("action applied")
		a.notify(ctx, entry, action)
	} else {
		log.Debug("action left entry unchanged", zap.String("status", string(entry.PaymentStatus)))
	}

	if action.AddSubscriptionPayment != nil {
		nested, err := a.Apply(ctx, action.AddSubscriptionPayment)
		if err != nil {
			return changed, fmt.Errorf("failed to add subscription payment: %w", err)
		}
		changed = changed || nested
	}

	return changed, nil
}

func (a *Applier) apply(ctx context.Context, action *gateway.Action) (*gateway.Entry, bool, error) {
	entry, err := a.store.GetEntry(ctx, action.EntryID)
	if err != nil {
		return nil, false, err
	}

	var changed bool
	switch action.Type {
	case gateway.ActionCompletePayment:
		changed, err = a.completePayment(ctx, entry, action)
	case gateway.ActionRefundPayment:
		changed, err = a.setStatusUnless(ctx, entry, gateway.StatusRefunded, gateway.StatusRefunded)
	case gateway.ActionFailPayment:
		changed, err = a.setStatusUnless(ctx, entry, gateway.StatusFailed, gateway.StatusFailed, gateway.StatusPaid, gateway.StatusRefunded)
	case gateway.ActionCreateSubscription:
		changed, err = a.createSubscription(ctx, entry, action)
	case gateway.ActionCancelSubscription:
		changed, err = a.setStatusUnless(ctx, entry, gateway.StatusCancelled, gateway.StatusCancelled, gateway.StatusExpired)
	case gateway.ActionExpireSubscription:
		changed, err = a.setStatusUnless(ctx, entry, gateway.StatusExpired, gateway.StatusCancelled, gateway.StatusExpired)
	case gateway.ActionAddSubscriptionPayment:
		changed, err = a.addSubscriptionPayment(ctx, entry, action)
	case gateway.ActionFailSubscriptionPayment:
		changed, err = a.failSubscriptionPayment(ctx, entry, action)
	default:
		return nil, false, fmt.Errorf("unknown action type %q", action.Type)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply %s to entry %d: %w", action.Type, entry.ID, err)
	}
	return entry, changed, nil
}

func (a *Applier) completePayment(ctx context.Context, entry *gateway.Entry, action *gateway.Action) (bool, error) {
	if entry.PaymentStatus == gateway.StatusPaid || entry.PaymentStatus == gateway.StatusRefunded {
		return false, nil
	}

	updates := []fieldUpdate{
		{gateway.FieldPaymentAmount, action.Amount},
		{gateway.FieldPaymentDate, a.paymentDate(action.PaymentDate)},
		{gateway.FieldPaymentMethod, action.PaymentMethod},
		{gateway.FieldTransactionType, string(gateway.TransactionProduct)},
	}
	if action.TransactionID != "" {
		updates = append(updates, fieldUpdate{gateway.FieldTransactionID, action.TransactionID})
	}
	if action.ReadyToFulfill {
		updates = append(updates, fieldUpdate{gateway.FieldIsFulfilled, true})
	}
	if err := a.update(ctx, entry, updates); err != nil {
		return false, err
	}
	if _, err := a.recordPayment(ctx, entry, action, "Paid"); err != nil {
		return false, err
	}

	// Status goes last: it is the guard a redelivery checks.
	if err := a.store.UpdateEntryField(ctx, entry.ID, gateway.FieldPaymentStatus, gateway.StatusPaid); err != nil {
		return false, err
	}
	entry.PaymentStatus = gateway.StatusPaid
	return true, nil
}

func (a *Applier) createSubscription(ctx context.Context, entry *gateway.Entry, action *gateway.Action) (bool, error) {
	if entry.PaymentStatus == gateway.StatusActive || entry.PaymentStatus.Ended() {
		return false, nil
	}

	updates := []fieldUpdate{
		{gateway.FieldTransactionID, action.SubscriptionID},
		{gateway.FieldTransactionType, string(gateway.TransactionSubscription)},
		{gateway.FieldPaymentAmount, action.Amount},
		{gateway.FieldPaymentDate, a.paymentDate(action.PaymentDate)},
		{gateway.FieldPaymentMethod, action.PaymentMethod},
	}
	if action.ReadyToFulfill {
		updates = append(updates, fieldUpdate{gateway.FieldIsFulfilled, true})
	}
	updates = append(updates, fieldUpdate{gateway.FieldPaymentStatus, gateway.StatusActive})
	if err := a.update(ctx, entry, updates); err != nil {
		return false, err
	}
	entry.PaymentStatus = gateway.StatusActive
	entry.TransactionID = action.SubscriptionID
	return true, nil
}

// addSubscriptionPayment records a renewal. A successful payment puts a
// subscription left Failed by an earlier invoice back to Active. The status
// must be written before the payment row, which is only new once.
func (a *Applier) addSubscriptionPayment(ctx context.Context, entry *gateway.Entry, action *gateway.Action) (bool, error) {
	var reactivated bool
	if entry.PaymentStatus == gateway.StatusFailed {
		if err := a.store.UpdateEntryField(ctx, entry.ID, gateway.FieldPaymentStatus, gateway.StatusActive); err != nil {
			return false, err
		}
		entry.PaymentStatus = gateway.StatusActive
		reactivated = true
	}
	recorded, err := a.recordPayment(ctx, entry, action, "Paid")
	if err != nil {
		return false, err
	}
	return recorded || reactivated, nil
}

func (a *Applier) failSubscriptionPayment(ctx context.Context, entry *gateway.Entry, action *gateway.Action) (bool, error) {
	if entry.PaymentStatus.Ended() {
		return false, nil
	}
	if _, err := a.recordPayment(ctx, entry, action, "Failed"); err != nil {
		return false, err
	}
	return a.setStatusUnless(ctx, entry, gateway.StatusFailed, gateway.StatusFailed)
}

func (a *Applier) recordPayment(ctx context.Context, entry *gateway.Entry, action *gateway.Action, status string) (bool, error) {
	txID := action.TransactionID
	if txID == "" {
		txID = action.ID
	}
	return a.store.RecordPayment(ctx, gateway.Payment{
		EntryID:        entry.ID,
		TransactionID:  txID,
		SubscriptionID: action.SubscriptionID,
		Amount:         action.Amount,
		Currency:       action.Currency,
		Status:         status,
		CreatedAt:      a.paymentDate(action.PaymentDate),
	})
}

// setStatusUnless moves entry to status unless it is already in one of skip.
func (a *Applier) setStatusUnless(ctx context.Context, entry *gateway.Entry, status gateway.PaymentStatus, skip ...gateway.PaymentStatus) (bool, error) {
	for _, s := range skip {
		if entry.PaymentStatus == s {
			return false, nil
		}
	}
	if err := a.store.UpdateEntryField(ctx, entry.ID, gateway.FieldPaymentStatus, status); err != nil {
		return false, err
	}
	entry.PaymentStatus = status
	return true, nil
}

type fieldUpdate struct {
	field gateway.EntryField
	value any
}

func (a *Applier) update(ctx context.Context, entry *gateway.Entry, updates []fieldUpdate) error {
	for _, u := range updates {
		if err := a.store.UpdateEntryField(ctx, entry.ID, u.field, u.value); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) notify(ctx context.Context, entry *gateway.Entry, action *gateway.Action) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, entry, action); err != nil {
		a.logger.Warn("failed to send payment notification",
			zap.Int64("entry_id", entry.ID), zap.String("action", string(action.Type)), zap.Error(err))
	}
}

var paymentDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func (a *Applier) paymentDate(raw string) time.Time {
	for _, layout := range paymentDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return a.now().UTC()
}
