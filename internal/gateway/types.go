package gateway

import (
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "Pending"
	StatusProcessing PaymentStatus = "Processing"
	StatusPaid       PaymentStatus = "Paid"
	StatusFailed     PaymentStatus = "Failed"
	StatusCancelled  PaymentStatus = "Cancelled"
	StatusExpired    PaymentStatus = "Expired"
	StatusActive     PaymentStatus = "Active"
	StatusRefunded   PaymentStatus = "Refunded"
)

// Ended reports whether a subscription in this status can no longer change.
func (s PaymentStatus) Ended() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Payable reports whether a checkout may be started from this status.
func (s PaymentStatus) Payable() bool {
	switch s {
	case "", StatusPending, StatusProcessing, StatusFailed:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionProduct      TransactionType = "product"
	TransactionSubscription TransactionType = "subscription"
	TransactionDonation     TransactionType = "donation"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionProduct, TransactionSubscription, TransactionDonation:
		return true
	}
	return false
}

// EntryField names a single entry column the core is allowed to write.
type EntryField string

const (
	FieldPaymentStatus   EntryField = "payment_status"
	FieldTransactionID   EntryField = "transaction_id"
	FieldTransactionType EntryField = "transaction_type"
	FieldPaymentAmount   EntryField = "payment_amount"
	FieldPaymentDate     EntryField = "payment_date"
	FieldPaymentMethod   EntryField = "payment_method"
	FieldIsFulfilled     EntryField = "is_fulfilled"
)

// Entry meta keys written by the gateway.
const (
	MetaFeedID        = "paystack_feed_id"
	MetaCustomerEmail = "paystack_customer_email"
	MetaPlanCode      = "paystack_plan_code"
	MetaTxReference   = "paystack_tx_reference"
	MetaTxAccessCode  = "paystack_tx_access_code"
	MetaTxAuthURL     = "paystack_tx_auth_url"
	MetaTxAuthCode    = "paystack_tx_auth_code"
	MetaTxLogged      = "paystack_tx_logged"
	MetaEmailToken    = "paystack_email_token"
)

const (
	EntryStatusSpam = "spam"
	PaymentMethod   = "paystack"
)

type Entry struct {
	ID            int64
	FormID        int64
	Status        string
	PaymentStatus PaymentStatus
	TransactionID string
	Currency      string
	PaymentAmount decimal.Decimal
	IsFulfilled   bool
	Values        map[string]string
	Meta          map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e *Entry) IsSpam() bool {
	return e.Status == EntryStatusSpam
}

// Value returns the submitted value of a form field, or "".
func (e *Entry) Value(fieldID string) string {
	if fieldID == "" || e.Values == nil {
		return ""
	}
	return e.Values[fieldID]
}

func (e *Entry) MetaValue(key string) string {
	if e.Meta == nil {
		return ""
	}
	return e.Meta[key]
}

type Feed struct {
	ID     int64
	FormID int64
	Name   string
	Active bool
	Meta   FeedMeta
}

type FeedMeta struct {
	Mode            config.Mode     `json:"mode" validate:"omitempty,oneof=live test"`
	TransactionType TransactionType `json:"transactionType" validate:"required,oneof=product subscription donation"`
	PlanName        string          `json:"planName,omitempty"`
	BillingCycle    string          `json:"billingCycle_unit,omitempty" validate:"omitempty,oneof=hourly daily weekly monthly quarterly biannually annually"`
	RecurringTimes  int             `json:"recurringTimes,omitempty" validate:"gte=0"`
	SendInvoices    bool            `json:"sendInvoices,omitempty"`
	Customer        CustomerFields  `json:"customerInformation"`
	CustomMeta      []CustomMeta    `json:"metaData,omitempty" validate:"dive"`
}

// CustomerFields maps customer attributes to form field ids.
type CustomerFields struct {
	Email     string `json:"email" validate:"required"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type CustomMeta struct {
	Key     string `json:"custom_key"`
	FieldID string `json:"value"`
}

func (f *Feed) IsSubscription() bool {
	return f.Meta.TransactionType == TransactionSubscription
}

type Form struct {
	ID           int64
	Title        string
	Confirmation Confirmation
}

// Confirmation is what the form shows once payment is verified. A non-empty
// RedirectURL takes precedence over Message.
type Confirmation struct {
	Message     string
	RedirectURL string
}

// Submission carries the values computed when the form was submitted.
type Submission struct {
	PaymentAmount  decimal.Decimal
	RecurringTimes string
	IPAddress      string
}

type ActionType string

const (
	ActionCompletePayment         ActionType = "complete_payment"
	ActionRefundPayment           ActionType = "refund_payment"
	ActionFailPayment             ActionType = "fail_payment"
	ActionCreateSubscription      ActionType = "create_subscription"
	ActionCancelSubscription      ActionType = "cancel_subscription"
	ActionAddSubscriptionPayment  ActionType = "add_subscription_payment"
	ActionFailSubscriptionPayment ActionType = "fail_subscription_payment"
	ActionExpireSubscription      ActionType = "expire_subscription"
)

// Action is a payment effect to apply to an entry. ID identifies the
// underlying remote event so that redelivered events can be deduplicated.
type Action struct {
	ID             string          `json:"id"`
	Type           ActionType      `json:"type"`
	EntryID        int64           `json:"entry_id"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	PaymentDate    string          `json:"payment_date,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	ReadyToFulfill bool            `json:"ready_to_fulfill"`

	AddSubscriptionPayment *Action `json:"add_subscription_payment,omitempty"`
}

// Payment is one recorded charge against an entry, keyed by the remote
// transaction id.
type Payment struct {
	EntryID        int64
	TransactionID  string
	SubscriptionID string
	Amount         decimal.Decimal
	Currency       string
	Status         string
	CreatedAt      time.Time
}
