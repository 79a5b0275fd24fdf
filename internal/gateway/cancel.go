package gateway

import (
	"context"
	"fmt"

	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"go.uber.org/zap"
)

// CancelSubscription disables the entry's subscription at the processor.
// A subscription that is already inactive counts as cancelled. The returned
// action shares its id with the subscription.disable webhook that follows,
// so the cancellation is applied once.
func (s *Service) CancelSubscription(ctx context.Context, entry *Entry, feed *Feed) (*Action, error) {
	code := entry.TransactionID
	if code == "" {
		return nil, ErrNoSubscription
	}
	log := s.logger.With(zap.Int64("entry_id", entry.ID), zap.String("subscription", code))

	client := s.client(s.resolveMode(feed))

	sub, err := client.GetSubscription(ctx, code)
	if err != nil {
		log.Error("unable to get subscription", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrSubscriptionNotFound, code, err)
	}

	action := &Action{
		ID:             code + "_" + paystack.EventSubscriptionDisable,
		Type:           ActionCancelSubscription,
		EntryID:        entry.ID,
		SubscriptionID: code,
		Currency:       entry.Currency,
		PaymentMethod:  PaymentMethod,
	}

	if !sub.Active() {
		log.Debug("subscription already cancelled", zap.String("status", sub.Status))
		return action, nil
	}

	token := entry.MetaValue(MetaEmailToken)
	if token == "" {
		token = sub.EmailToken
	}
	if err := client.DisableSubscription(ctx, code, token); err != nil {
		log.Error("unable to cancel subscription", zap.Error(err))
		return nil, fmt.Errorf("failed to disable subscription %s: %w", code, err)
	}

	log.Info("subscription cancelled")
	return action, nil
}
