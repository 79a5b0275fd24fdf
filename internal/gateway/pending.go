package gateway

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
)

// ReconcilePending settles an entry that has sat in Processing too long.
// Entries whose checkout never reached the processor fail; one-off charges
// are re-verified. Subscriptions are left to their webhooks. A nil action
// means the entry should be left alone.
func (s *Service) ReconcilePending(ctx context.Context, entry *Entry) (*Action, error) {
	if entry.PaymentStatus != StatusProcessing {
		return nil, nil
	}
	log := s.logger.With(zap.Int64("entry_id", entry.ID))

	ref := entry.MetaValue(MetaTxReference)
	if ref == "" {
		log.Info("checkout never initialized, failing entry")
		return &Action{
			ID:            strconv.FormatInt(entry.ID, 10) + "_stale_" + string(ActionFailPayment),
			Type:          ActionFailPayment,
			EntryID:       entry.ID,
			Amount:        entry.PaymentAmount,
			Currency:      entry.Currency,
			PaymentMethod: PaymentMethod,
		}, nil
	}

	feed, err := s.feedForEntry(ctx, entry)
	if errors.Is(err, ErrFeedNotFound) {
		log.Warn("no feed for pending entry, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if feed.IsSubscription() {
		return nil, nil
	}

	tx, err := s.client(s.resolveMode(feed)).VerifyTransaction(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case "success":
		return &Action{
			ID:             chargeActionID(tx.ID),
			Type:           ActionCompletePayment,
			EntryID:        entry.ID,
			TransactionID:  strconv.FormatInt(tx.ID, 10),
			Amount:         s.importAmount(tx.Amount, tx.Currency, entry.Currency),
			Currency:       firstNonEmpty(tx.Currency, entry.Currency),
			PaymentDate:    tx.PaidAt,
			PaymentMethod:  PaymentMethod,
			ReadyToFulfill: !entry.IsFulfilled,
		}, nil
	case "failed", "abandoned":
		return &Action{
			ID:            ref + "_" + string(ActionFailPayment),
			Type:          ActionFailPayment,
			EntryID:       entry.ID,
			TransactionID: ref,
			Amount:        s.importAmount(tx.Amount, tx.Currency, entry.Currency),
			Currency:      firstNonEmpty(tx.Currency, entry.Currency),
			PaymentMethod: PaymentMethod,
		}, nil
	}

	log.Debug("transaction still open", zap.String("reference", ref), zap.String("status", tx.Status))
	return nil, nil
}
