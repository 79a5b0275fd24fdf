package gateway

import "errors"

var (
	ErrEntryNotFound        = errors.New("entry not found")
	ErrEntrySpam            = errors.New("entry is marked as spam")
	ErrEntrySettled         = errors.New("entry payment already settled")
	ErrFormNotFound         = errors.New("form not found")
	ErrFeedNotFound         = errors.New("feed not found")
	ErrFeedInactive         = errors.New("feed is inactive")
	ErrInvalidFeed          = errors.New("invalid feed configuration")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoSubscription       = errors.New("entry has no subscription")
	ErrDeclined             = errors.New("payment declined")
	ErrVerificationFailed   = errors.New("transaction verification failed")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrWebhooksDisabled     = errors.New("webhooks are disabled")
	ErrMalformedEvent       = errors.New("malformed webhook event")
	ErrUnsupportedInterval  = errors.New("unsupported billing interval")
)
