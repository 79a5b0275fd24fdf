package gateway

import (
	"context"
	"fmt"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"go.uber.org/zap"
)

// ReceiveWebhook authenticates a raw webhook body and reconciles it. The
// signature is checked against the secret key of the mode named in
// data.domain, before the event is trusted.
func (s *Service) ReceiveWebhook(ctx context.Context, payload []byte, signature string) (*Action, error) {
	if !s.cfg.WebhooksEnabled {
		return nil, ErrWebhooksDisabled
	}

	event, parseErr := paystack.ParseEvent(payload)

	mode := s.cfg.APIMode
	if parseErr == nil {
		if m := config.Mode(event.Domain()); m.Valid() {
			mode = m
		}
	}

	if !paystack.VerifySignature(payload, signature, s.cfg.Keys(mode).SecretKey) {
		s.logger.Warn("webhook request is invalid, aborting", zap.String("mode", string(mode)))
		return nil, ErrInvalidSignature
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, parseErr)
	}

	s.logger.Debug("processing webhook event", zap.String("event", event.Event), zap.String("mode", string(mode)))

	return s.Reconcile(ctx, event, mode)
}
