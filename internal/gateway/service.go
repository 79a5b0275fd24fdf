// Package gateway drives Paystack checkouts for form entries and turns the
// processor's webhooks into payment actions for the host platform.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/money"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"github.com/Mekazstan/paystack-forms-gateway/internal/reference"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options are the construction-time hooks the host may supply.
type Options struct {
	// APIModeOverride can force a mode per feed. It receives the mode the
	// feed (or the settings) selected.
	APIModeOverride func(mode config.Mode, feedID int64) config.Mode
	ExtraHeaders    map[string]string
}

// ClientFactory returns the API client for a mode.
type ClientFactory func(mode config.Mode) PaystackAPI

type Dependencies struct {
	Entries EntryStore
	Feeds   FeedStore
	Forms   FormRuntime
	Clients ClientFactory
}

type Service struct {
	cfg      *config.Config
	opts     Options
	entries  EntryStore
	feeds    FeedStore
	forms    FormRuntime
	clients  ClientFactory
	codec    *reference.Codec
	validate *validator.Validate
	logger   *zap.Logger

	newReference func(entryID int64) string
}

func NewService(cfg *config.Config, deps Dependencies, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:          cfg,
		opts:         opts,
		entries:      deps.Entries,
		feeds:        deps.Feeds,
		forms:        deps.Forms,
		clients:      deps.Clients,
		codec:        reference.NewCodec(cfg.ReferenceSecret),
		validate:     validator.New(),
		logger:       logger,
		newReference: transactionReference,
	}
	if s.clients == nil {
		s.clients = NewClientFactory(cfg, opts, logger)
	}
	return s
}

// NewClientFactory builds one client per mode from the configured key pairs.
func NewClientFactory(cfg *config.Config, opts Options, logger *zap.Logger) ClientFactory {
	headers := make(map[string]string, len(cfg.ExtraHeaders)+len(opts.ExtraHeaders))
	for k, v := range cfg.ExtraHeaders {
		headers[k] = v
	}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}

	clients := make(map[config.Mode]*paystack.Client, 2)
	for _, mode := range []config.Mode{config.ModeLive, config.ModeTest} {
		keys := cfg.Keys(mode)
		clients[mode] = paystack.NewClient(keys.SecretKey, keys.PublicKey,
			paystack.WithBaseURL(cfg.PaystackBaseURL),
			paystack.WithTrackerURL(cfg.TrackerURL),
			paystack.WithHeaders(headers),
			paystack.WithLogger(logger.With(zap.String("mode", string(mode)))),
		)
	}

	return func(mode config.Mode) PaystackAPI {
		if c, ok := clients[mode]; ok {
			return c
		}
		return clients[cfg.APIMode]
	}
}

// resolveMode picks the feed's mode, falling back to the configured mode.
func (s *Service) resolveMode(feed *Feed) config.Mode {
	mode := s.cfg.APIMode
	var feedID int64
	if feed != nil {
		feedID = feed.ID
		if feed.Meta.Mode.Valid() {
			mode = feed.Meta.Mode
		}
	}
	if s.opts.APIModeOverride != nil {
		if m := s.opts.APIModeOverride(mode, feedID); m.Valid() {
			mode = m
		}
	}
	return mode
}

func (s *Service) client(mode config.Mode) PaystackAPI {
	if !mode.Valid() {
		mode = s.cfg.APIMode
	}
	return s.clients(mode)
}

// ValidateFeed checks that a feed carries what a checkout needs.
func (s *Service) ValidateFeed(feed *Feed) error {
	if err := s.validate.Struct(feed.Meta); err != nil {
		return fmt.Errorf("%w: feed %d: %v", ErrInvalidFeed, feed.ID, err)
	}
	if feed.IsSubscription() && feed.Meta.BillingCycle == "" {
		return fmt.Errorf("%w: feed %d: subscription feeds need a billing cycle", ErrInvalidFeed, feed.ID)
	}
	return nil
}

// feedForEntry finds the feed that processed entry: the one recorded at
// checkout, else the form's feed.
func (s *Service) feedForEntry(ctx context.Context, entry *Entry) (*Feed, error) {
	if raw := entry.MetaValue(MetaFeedID); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			feed, err := s.feeds.GetFeed(ctx, id)
			if err == nil {
				return feed, nil
			}
			if !errors.Is(err, ErrFeedNotFound) {
				return nil, err
			}
		}
	}
	return s.feeds.GetFeedForForm(ctx, entry.FormID)
}

// activeFeedForEntry returns nil when the entry's feed is gone or disabled.
func (s *Service) activeFeedForEntry(ctx context.Context, entry *Entry) (*Feed, error) {
	feed, err := s.feedForEntry(ctx, entry)
	if errors.Is(err, ErrFeedNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !feed.Active {
		return nil, nil
	}
	return feed, nil
}

// importAmount converts a minor-unit amount. Unknown currencies fall back to
// two decimal places.
func (s *Service) importAmount(minor int64, currencies ...string) decimal.Decimal {
	for _, code := range currencies {
		if code == "" {
			continue
		}
		if amount, err := money.FromMinor(minor, code); err == nil {
			return amount
		}
	}
	s.logger.Warn("importing amount with default precision",
		zap.Int64("minor", minor), zap.Strings("currencies", currencies))
	return decimal.New(minor, -2)
}

// WebhookURL is the address to register on the Paystack dashboard.
func (s *Service) WebhookURL(feedID int64) string {
	url := s.cfg.AppURL + "/paystack/webhook"
	if feedID > 0 {
		url += "?fid=" + strconv.FormatInt(feedID, 10)
	}
	return url
}

// transactionReference returns gf-<entry>-<13 hex chars>, fresh per call.
func transactionReference(entryID int64) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("gf-%d-%s", entryID, id[:13])
}
