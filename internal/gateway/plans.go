package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mekazstan/paystack-forms-gateway/internal/money"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SupportedIntervals lists the billing cycles Paystack plans accept.
var SupportedIntervals = []string{"hourly", "daily", "weekly", "monthly", "quarterly", "biannually", "annually"}

func supportedInterval(interval string) bool {
	for _, i := range SupportedIntervals {
		if i == interval {
			return true
		}
	}
	return false
}

// PlanName joins the non-empty parts of (plan name or feed name, feed id,
// billing cycle, amount, currency) with underscores.
func PlanName(feed *Feed, amount decimal.Decimal, currency string) string {
	name := feed.Meta.PlanName
	if name == "" {
		name = feed.Name
	}

	var id string
	if feed.ID > 0 {
		id = strconv.FormatInt(feed.ID, 10)
	}
	var amt string
	if !amount.IsZero() {
		amt = amount.String()
	}

	parts := make([]string, 0, 5)
	for _, p := range []string{name, id, feed.Meta.BillingCycle, amt, currency} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// CreatePlan creates a recurring plan for feed in the feed's mode.
func (s *Service) CreatePlan(ctx context.Context, feed *Feed, amount decimal.Decimal, currency string) (*paystack.Plan, error) {
	return s.createPlan(ctx, s.client(s.resolveMode(feed)), feed, amount, currency)
}

func (s *Service) createPlan(ctx context.Context, client PaystackAPI, feed *Feed, amount decimal.Decimal, currency string) (*paystack.Plan, error) {
	interval := feed.Meta.BillingCycle
	if !supportedInterval(interval) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInterval, interval)
	}

	minor, err := money.ToMinor(amount, currency)
	if err != nil {
		return nil, err
	}

	params := paystack.PlanParams{
		Name:         PlanName(feed, amount, currency),
		Amount:       minor,
		Interval:     interval,
		Currency:     currency,
		InvoiceLimit: feed.Meta.RecurringTimes,
		SendInvoices: feed.Meta.SendInvoices,
	}
	s.logger.Debug("creating plan", zap.Any("plan", params))

	plan, err := client.CreatePlan(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan %q: %w", params.Name, err)
	}
	return plan, nil
}

// GetPlan fetches a previously created plan by id or code.
func (s *Service) GetPlan(ctx context.Context, feed *Feed, idOrCode string) (*paystack.Plan, error) {
	return s.client(s.resolveMode(feed)).GetPlan(ctx, idOrCode)
}
