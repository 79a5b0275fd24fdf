package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// entryColumns maps the writable entry fields to their columns. Field names
// are never interpolated into SQL without passing through this map.
var entryColumns = map[gateway.EntryField]string{
	gateway.FieldPaymentStatus:   "payment_status",
	gateway.FieldTransactionID:   "transaction_id",
	gateway.FieldTransactionType: "transaction_type",
	gateway.FieldPaymentAmount:   "payment_amount",
	gateway.FieldPaymentDate:     "payment_date",
	gateway.FieldPaymentMethod:   "payment_method",
	gateway.FieldIsFulfilled:     "is_fulfilled",
}

const getEntry = `
SELECT id, form_id, status, payment_status, transaction_id, currency,
       payment_amount, is_fulfilled, created_at, updated_at
FROM entries
WHERE id = $1`

func (s *Store) GetEntry(ctx context.Context, id int64) (*gateway.Entry, error) {
	var (
		e             gateway.Entry
		paymentStatus string
		transactionID pgtype.Text
		amount        pgtype.Numeric
	)
	err := s.db.QueryRow(ctx, getEntry, id).Scan(
		&e.ID,
		&e.FormID,
		&e.Status,
		&paymentStatus,
		&transactionID,
		&e.Currency,
		&amount,
		&e.IsFulfilled,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, gateway.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %d: %w", id, err)
	}
	e.PaymentStatus = gateway.PaymentStatus(paymentStatus)
	e.TransactionID = transactionID.String
	e.PaymentAmount = numericToDecimal(amount)

	if e.Values, err = s.keyValues(ctx, `SELECT field_id, value FROM entry_values WHERE entry_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get values of entry %d: %w", id, err)
	}
	if e.Meta, err = s.keyValues(ctx, `SELECT meta_key, meta_value FROM entry_meta WHERE entry_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get meta of entry %d: %w", id, err)
	}
	return &e, nil
}

func (s *Store) keyValues(ctx context.Context, query string, id int64) (map[string]string, error) {
	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// UpdateEntryField writes a single column so concurrent deliveries touching
// other fields of the same entry are not overwritten.
func (s *Store) UpdateEntryField(ctx context.Context, id int64, field gateway.EntryField, value any) error {
	column, ok := entryColumns[field]
	if !ok {
		return fmt.Errorf("unknown entry field %q", field)
	}
	arg, err := encodeFieldValue(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}

	query := fmt.Sprintf(`UPDATE entries SET %s = $2, updated_at = now() WHERE id = $1`, column)
	tag, err := s.db.Exec(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("failed to update %s of entry %d: %w", field, id, err)
	}
	if tag.RowsAffected() == 0 {
		return gateway.ErrEntryNotFound
	}
	return nil
}

func encodeFieldValue(value any) (any, error) {
	switch v := value.(type) {
	case gateway.PaymentStatus:
		return string(v), nil
	case gateway.TransactionType:
		return string(v), nil
	case decimal.Decimal:
		return decimalToPgNumeric(v)
	case time.Time:
		return pgtype.Timestamptz{Time: v, Valid: !v.IsZero()}, nil
	case string, bool, nil:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

const upsertEntryMeta = `
INSERT INTO entry_meta (entry_id, meta_key, meta_value)
VALUES ($1, $2, $3)
ON CONFLICT (entry_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`

func (s *Store) UpdateEntryMeta(ctx context.Context, id int64, key, value string) error {
	if _, err := s.db.Exec(ctx, upsertEntryMeta, id, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s of entry %d: %w", key, id, err)
	}
	return nil
}

// A transaction reference lands in transaction_id at checkout and in the
// tx reference meta; either match counts. The newest entry wins.
const findEntryByTransactionReference = `
SELECT id FROM entries WHERE transaction_id = $1
UNION
SELECT entry_id FROM entry_meta WHERE meta_key = $2 AND meta_value = $1
ORDER BY 1 DESC
LIMIT 1`

func (s *Store) FindEntryByTransactionReference(ctx context.Context, reference string) (int64, bool, error) {
	return s.findEntryID(ctx, findEntryByTransactionReference, reference, gateway.MetaTxReference)
}

func (s *Store) FindEntryByTransactionID(ctx context.Context, transactionID string) (int64, bool, error) {
	return s.findEntryID(ctx, `SELECT id FROM entries WHERE transaction_id = $1 ORDER BY id DESC LIMIT 1`, transactionID)
}

func (s *Store) findEntryID(ctx context.Context, query string, args ...any) (int64, bool, error) {
	if args[0] == "" {
		return 0, false, nil
	}
	var id int64
	err := s.db.QueryRow(ctx, query, args...).Scan(&id)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up entry: %w", err)
	}
	return id, true, nil
}

const insertPayment = `
INSERT INTO entry_payments (entry_id, transaction_id, subscription_id, amount, currency, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (entry_id, transaction_id) DO NOTHING`

// RecordPayment reports false when the entry already has a payment for the
// same transaction.
func (s *Store) RecordPayment(ctx context.Context, p gateway.Payment) (bool, error) {
	amount, err := decimalToPgNumeric(p.Amount)
	if err != nil {
		return false, fmt.Errorf("failed to convert amount: %w", err)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := s.db.Exec(ctx, insertPayment,
		p.EntryID, p.TransactionID, p.SubscriptionID, amount, p.Currency, p.Status, createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to record payment %s for entry %d: %w", p.TransactionID, p.EntryID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const listPayments = `
SELECT entry_id, transaction_id, subscription_id, amount, currency, status, created_at
FROM entry_payments
WHERE entry_id = $1
ORDER BY created_at, id`

func (s *Store) ListPayments(ctx context.Context, entryID int64) ([]gateway.Payment, error) {
	rows, err := s.db.Query(ctx, listPayments, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments of entry %d: %w", entryID, err)
	}
	defer rows.Close()

	var payments []gateway.Payment
	for rows.Next() {
		var (
			p      gateway.Payment
			amount pgtype.Numeric
		)
		if err := rows.Scan(&p.EntryID, &p.TransactionID, &p.SubscriptionID, &amount, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = numericToDecimal(amount)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const listStaleEntries = `
SELECT id FROM entries
WHERE payment_status = $1 AND updated_at < $2 AND id > $3 AND status <> $4
ORDER BY id
LIMIT $5`

// ListStaleEntries pages through Processing entries untouched since before,
// starting after afterID.
func (s *Store) ListStaleEntries(ctx context.Context, before time.Time, afterID int64, limit int32) ([]*gateway.Entry, error) {
	rows, err := s.db.Query(ctx, listStaleEntries,
		string(gateway.StatusProcessing), before, afterID, gateway.EntryStatusSpam, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale entries: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stale entries: %w", err)
	}

	entries := make([]*gateway.Entry, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type CreateEntryParams struct {
	FormID   int64
	Currency string
	Values   map[string]string
}

func (s *Store) CreateEntry(ctx context.Context, arg CreateEntryParams) (*gateway.Entry, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO entries (form_id, currency) VALUES ($1, $2) RETURNING id`,
		arg.FormID, arg.Currency).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	for field, value := range arg.Values {
		_, err := s.db.Exec(ctx,
			`INSERT INTO entry_values (entry_id, field_id, value) VALUES ($1, $2, $3)`,
			id, field, value)
		if err != nil {
			return nil, fmt.Errorf("failed to store value %s of entry %d: %w", field, id, err)
		}
	}
	return s.GetEntry(ctx, id)
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	return err
}
