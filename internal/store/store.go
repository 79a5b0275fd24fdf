// Package store keeps forms, feeds and entries in Postgres for the gateway
// and the payment ledger.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/Mekazstan/paystack-forms-gateway/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DBTX
}

var (
	_ gateway.EntryStore  = (*Store)(nil)
	_ gateway.FeedStore   = (*Store)(nil)
	_ gateway.FormRuntime = (*Store)(nil)
	_ ledger.Store        = (*Store)(nil)
)

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates any missing tables. It is safe to run on every start.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func decimalToPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	num := pgtype.Numeric{}
	err := num.Scan(d.String())
	return num, err
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
