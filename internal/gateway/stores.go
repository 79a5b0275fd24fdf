package gateway

import (
	"context"

	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
)

// EntryStore is the host platform's entry storage. Lookups that find nothing
// report found=false rather than an error; GetEntry returns ErrEntryNotFound.
type EntryStore interface {
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	UpdateEntryField(ctx context.Context, id int64, field EntryField, value any) error
	UpdateEntryMeta(ctx context.Context, id int64, key, value string) error
	FindEntryByTransactionReference(ctx context.Context, reference string) (int64, bool, error)
	FindEntryByTransactionID(ctx context.Context, transactionID string) (int64, bool, error)
}

// FeedStore returns ErrFeedNotFound when no feed matches.
type FeedStore interface {
	GetFeed(ctx context.Context, id int64) (*Feed, error)
	GetFeedForForm(ctx context.Context, formID int64) (*Feed, error)
}

type FormRuntime interface {
	GetForm(ctx context.Context, id int64) (*Form, error)
	HandleConfirmation(ctx context.Context, form *Form, entry *Entry) (Confirmation, error)
}

// PaystackAPI is the subset of *paystack.Client the gateway drives.
type PaystackAPI interface {
	InitializeTransaction(ctx context.Context, params paystack.InitializeParams) (*paystack.Authorization, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
	CreatePlan(ctx context.Context, params paystack.PlanParams) (*paystack.Plan, error)
	GetPlan(ctx context.Context, idOrCode string) (*paystack.Plan, error)
	GetSubscription(ctx context.Context, idOrCode string) (*paystack.Subscription, error)
	DisableSubscription(ctx context.Context, code, emailToken string) error
	LogTransactionSuccess(reference string)
}

var _ PaystackAPI = (*paystack.Client)(nil)
