package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fieldWrite struct {
	EntryID int64
	Field   EntryField
	Value   any
}

type fakeEntries struct {
	mu      sync.Mutex
	entries map[int64]*Entry
	writes  []fieldWrite
	getErr  error
}

func newFakeEntries(entries ...*Entry) *fakeEntries {
	f := &fakeEntries{entries: make(map[int64]*Entry)}
	for _, e := range entries {
		if e.Meta == nil {
			e.Meta = map[string]string{}
		}
		f.entries[e.ID] = e
	}
	return f
}

func (f *fakeEntries) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	cp.Meta = make(map[string]string, len(e.Meta))
	for k, v := range e.Meta {
		cp.Meta[k] = v
	}
	return &cp, nil
}

func (f *fakeEntries) UpdateEntryField(ctx context.Context, id int64, field EntryField, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	f.writes = append(f.writes, fieldWrite{EntryID: id, Field: field, Value: value})
	switch field {
	case FieldPaymentStatus:
		e.PaymentStatus = value.(PaymentStatus)
	case FieldTransactionID:
		e.TransactionID = value.(string)
	case FieldIsFulfilled:
		e.IsFulfilled = value.(bool)
	case FieldPaymentAmount:
		e.PaymentAmount = value.(decimal.Decimal)
	}
	return nil
}

func (f *fakeEntries) UpdateEntryMeta(ctx context.Context, id int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Meta[key] = value
	return nil
}

func (f *fakeEntries) FindEntryByTransactionReference(ctx context.Context, reference string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.entries {
		if reference != "" && e.Meta[MetaTxReference] == reference {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeEntries) FindEntryByTransactionID(ctx context.Context, transactionID string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.entries {
		if transactionID != "" && e.TransactionID == transactionID {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeEntries) entry(id int64) Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.entries[id]
}

func (f *fakeEntries) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeFeeds struct {
	feeds map[int64]*Feed
}

func newFakeFeeds(feeds ...*Feed) *fakeFeeds {
	f := &fakeFeeds{feeds: make(map[int64]*Feed)}
	for _, feed := range feeds {
		f.feeds[feed.ID] = feed
	}
	return f
}

func (f *fakeFeeds) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	feed, ok := f.feeds[id]
	if !ok {
		return nil, ErrFeedNotFound
	}
	return feed, nil
}

func (f *fakeFeeds) GetFeedForForm(ctx context.Context, formID int64) (*Feed, error) {
	for _, feed := range f.feeds {
		if feed.FormID == formID {
			return feed, nil
		}
	}
	return nil, ErrFeedNotFound
}

type fakeForms struct {
	forms         map[int64]*Form
	confirmations int
}

func (f *fakeForms) GetForm(ctx context.Context, id int64) (*Form, error) {
	form, ok := f.forms[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	return form, nil
}

func (f *fakeForms) HandleConfirmation(ctx context.Context, form *Form, entry *Entry) (Confirmation, error) {
	f.confirmations++
	return form.Confirmation, nil
}

// fakeClient records calls and answers from canned results.
type fakeClient struct {
	mu sync.Mutex

	initParams []paystack.InitializeParams
	initAuth   *paystack.Authorization
	initErr    error

	planParams []paystack.PlanParams
	plan       *paystack.Plan
	planErr    error

	transactions map[string]*paystack.Transaction
	verifyErr    error
	verifyCalls  int

	subscriptions map[string]*paystack.Subscription
	subErr        error

	disabled   []string
	disableErr error

	tracked []string
}

func (c *fakeClient) InitializeTransaction(ctx context.Context, params paystack.InitializeParams) (*paystack.Authorization, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initParams = append(c.initParams, params)
	if c.initErr != nil {
		return nil, c.initErr
	}
	return c.initAuth, nil
}

func (c *fakeClient) VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifyCalls++
	if c.verifyErr != nil {
		return nil, c.verifyErr
	}
	tx, ok := c.transactions[reference]
	if !ok {
		return nil, &paystack.APIError{Message: "Transaction reference not found"}
	}
	return tx, nil
}

func (c *fakeClient) CreatePlan(ctx context.Context, params paystack.PlanParams) (*paystack.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planParams = append(c.planParams, params)
	if c.planErr != nil {
		return nil, c.planErr
	}
	return c.plan, nil
}

func (c *fakeClient) GetPlan(ctx context.Context, idOrCode string) (*paystack.Plan, error) {
	if c.plan == nil || c.plan.PlanCode != idOrCode {
		return nil, &paystack.APIError{Message: "Plan not found"}
	}
	return c.plan, nil
}

func (c *fakeClient) GetSubscription(ctx context.Context, idOrCode string) (*paystack.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return nil, c.subErr
	}
	sub, ok := c.subscriptions[idOrCode]
	if !ok {
		return nil, &paystack.APIError{Message: "Subscription not found"}
	}
	return sub, nil
}

func (c *fakeClient) DisableSubscription(ctx context.Context, code, emailToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disableErr != nil {
		return c.disableErr
	}
	c.disabled = append(c.disabled, code+":"+emailToken)
	return nil
}

func (c *fakeClient) LogTransactionSuccess(reference string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked = append(c.tracked, reference)
}

type testEnv struct {
	svc     *Service
	cfg     *config.Config
	entries *fakeEntries
	feeds   *fakeFeeds
	forms   *fakeForms
	client  *fakeClient
}

func testConfig() *config.Config {
	return &config.Config{
		AppURL:          "https://forms.example.com",
		ReferenceSecret: "reference-secret",
		APIMode:         config.ModeTest,
		LiveKeys:        config.KeyPair{PublicKey: "pk_live", SecretKey: "sk_live_secret"},
		TestKeys:        config.KeyPair{PublicKey: "pk_test", SecretKey: "sk_test_secret"},
		WebhooksEnabled: true,
	}
}

func newTestEnv(t *testing.T, entries []*Entry, feeds []*Feed, forms ...*Form) *testEnv {
	t.Helper()
	env := &testEnv{
		cfg:     testConfig(),
		entries: newFakeEntries(entries...),
		feeds:   newFakeFeeds(feeds...),
		forms:   &fakeForms{forms: make(map[int64]*Form)},
		client: &fakeClient{
			transactions:  make(map[string]*paystack.Transaction),
			subscriptions: make(map[string]*paystack.Subscription),
		},
	}
	for _, f := range forms {
		env.forms.forms[f.ID] = f
	}
	env.svc = NewService(env.cfg, Dependencies{
		Entries: env.entries,
		Feeds:   env.feeds,
		Forms:   env.forms,
		Clients: func(config.Mode) PaystackAPI { return env.client },
	}, Options{}, zap.NewNop())
	return env
}

func productFeed(id, formID int64) *Feed {
	return &Feed{
		ID:     id,
		FormID: formID,
		Name:   "Donations",
		Active: true,
		Meta: FeedMeta{
			Mode:            config.ModeTest,
			TransactionType: TransactionProduct,
			Customer:        CustomerFields{Email: "2", FirstName: "1.3", LastName: "1.6"},
		},
	}
}

func subscriptionFeed(id, formID int64) *Feed {
	feed := productFeed(id, formID)
	feed.Name = "Membership"
	feed.Meta.TransactionType = TransactionSubscription
	feed.Meta.BillingCycle = "monthly"
	feed.Meta.RecurringTimes = 12
	return feed
}

func newEntry(id, formID int64) *Entry {
	return &Entry{
		ID:            id,
		FormID:        formID,
		Status:        "active",
		PaymentStatus: StatusPending,
		Currency:      "NGN",
		Values:        map[string]string{"2": "ada@example.com", "1.3": "Ada", "1.6": "Obi", "5": "Lagos"},
		Meta:          map[string]string{},
	}
}

func signedEvent(t *testing.T, secret, body string) ([]byte, string) {
	t.Helper()
	payload := []byte(body)
	return payload, paystack.Sign(payload, secret)
}
