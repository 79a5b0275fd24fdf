package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type ReturnResult struct {
	Entry        *Entry
	Form         *Form
	Reference    string
	Confirmation Confirmation
}

// HandleReturn processes the customer's redirect back from the hosted
// checkout. The transaction is always re-verified with the processor; the
// only write is the one-time analytics marker, so repeated visits are safe.
func (s *Service) HandleReturn(ctx context.Context, encodedRef, txReference string) (*ReturnResult, error) {
	ids, err := s.codec.Decode(encodedRef)
	if err != nil {
		s.logger.Warn("return callback rejected", zap.Error(err))
		return nil, err
	}
	log := s.logger.With(zap.Int64("entry_id", ids.EntryID), zap.Int64("feed_id", ids.FeedID))

	entry, err := s.entries.GetEntry(ctx, ids.EntryID)
	if err != nil {
		log.Error("entry could not be found, aborting", zap.Error(err))
		if errors.Is(err, ErrEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load entry %d: %w", ids.EntryID, err)
	}
	if entry.IsSpam() {
		log.Error("entry is marked as spam, aborting")
		return nil, ErrEntrySpam
	}

	if ids.FormID != entry.FormID {
		log.Error("reference names another form, aborting", zap.Int64("form_id", ids.FormID), zap.Int64("entry_form_id", entry.FormID))
		return nil, ErrFormNotFound
	}

	form, err := s.forms.GetForm(ctx, ids.FormID)
	if err != nil {
		log.Error("form could not be found, aborting", zap.Int64("form_id", ids.FormID), zap.Error(err))
		return nil, err
	}

	feed, err := s.feeds.GetFeed(ctx, ids.FeedID)
	if err != nil {
		log.Error("feed could not be found, aborting", zap.Error(err))
		return nil, err
	}
	if feed.FormID != entry.FormID {
		log.Error("feed belongs to another form, aborting", zap.Int64("feed_form_id", feed.FormID), zap.Int64("form_id", entry.FormID))
		return nil, ErrFeedNotFound
	}
	if !feed.Active {
		log.Error("form no longer uses an active Paystack feed, aborting", zap.Int64("form_id", entry.FormID))
		return nil, ErrFeedInactive
	}

	if txReference == "" {
		txReference = entry.MetaValue(MetaTxReference)
	}
	if txReference == "" {
		log.Error("no transaction reference on return")
		return nil, fmt.Errorf("%w: missing reference", ErrVerificationFailed)
	}

	mode := s.resolveMode(feed)
	client := s.client(mode)

	tx, err := client.VerifyTransaction(ctx, txReference)
	if err != nil {
		log.Error("transaction could not be verified", zap.String("reference", txReference), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if !tx.Succeeded() {
		log.Error("transaction verification failed",
			zap.String("reference", txReference), zap.String("status", tx.Status), zap.String("gateway_response", tx.GatewayResp))
		return nil, fmt.Errorf("%w: status %q", ErrVerificationFailed, tx.Status)
	}
	if tx.Metadata.EntryID != 0 && tx.Metadata.EntryID != entry.ID {
		log.Error("verified transaction belongs to another entry",
			zap.String("reference", txReference), zap.Int64("transaction_entry_id", tx.Metadata.EntryID))
		return nil, fmt.Errorf("%w: reference %s is not for entry %d", ErrVerificationFailed, txReference, entry.ID)
	}

	if entry.MetaValue(MetaTxLogged) == "" {
		client.LogTransactionSuccess(txReference)
		s.setMeta(ctx, entry.ID, MetaTxLogged, txReference)
	}

	confirmation, err := s.forms.HandleConfirmation(ctx, form, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build confirmation: %w", err)
	}

	log.Info("return verified", zap.String("reference", txReference))

	return &ReturnResult{
		Entry:        entry,
		Form:         form,
		Reference:    txReference,
		Confirmation: confirmation,
	}, nil
}
