package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/jackc/pgx/v5"
)

const feedColumns = `id, form_id, name, is_active, meta`

func scanFeed(row pgx.Row) (*gateway.Feed, error) {
	var (
		f    gateway.Feed
		meta []byte
	)
	if err := row.Scan(&f.ID, &f.FormID, &f.Name, &f.Active, &meta); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &f.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta of feed %d: %w", f.ID, err)
		}
	}
	return &f, nil
}

func (s *Store) GetFeed(ctx context.Context, id int64) (*gateway.Feed, error) {
	feed, err := scanFeed(s.db.QueryRow(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, gateway.ErrFeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed %d: %w", id, err)
	}
	return feed, nil
}

// GetFeedForForm prefers the oldest active feed of the form.
func (s *Store) GetFeedForForm(ctx context.Context, formID int64) (*gateway.Feed, error) {
	feed, err := scanFeed(s.db.QueryRow(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE form_id = $1 ORDER BY is_active DESC, id LIMIT 1`, formID))
	if isNoRows(err) {
		return nil, gateway.ErrFeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed for form %d: %w", formID, err)
	}
	return feed, nil
}

type CreateFeedParams struct {
	FormID int64
	Name   string
	Active bool
	Meta   gateway.FeedMeta
}

func (s *Store) CreateFeed(ctx context.Context, arg CreateFeedParams) (*gateway.Feed, error) {
	meta, err := json.Marshal(arg.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feed meta: %w", err)
	}
	feed, err := scanFeed(s.db.QueryRow(ctx,
		`INSERT INTO feeds (form_id, name, is_active, meta) VALUES ($1, $2, $3, $4) RETURNING `+feedColumns,
		arg.FormID, arg.Name, arg.Active, meta))
	if err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}
	return feed, nil
}

func (s *Store) GetForm(ctx context.Context, id int64) (*gateway.Form, error) {
	var f gateway.Form
	err := s.db.QueryRow(ctx,
		`SELECT id, title, confirmation_message, confirmation_redirect_url FROM forms WHERE id = $1`, id).
		Scan(&f.ID, &f.Title, &f.Confirmation.Message, &f.Confirmation.RedirectURL)
	if isNoRows(err) {
		return nil, gateway.ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form %d: %w", id, err)
	}
	return &f, nil
}

type CreateFormParams struct {
	Title        string
	Confirmation gateway.Confirmation
}

func (s *Store) CreateForm(ctx context.Context, arg CreateFormParams) (*gateway.Form, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO forms (title, confirmation_message, confirmation_redirect_url) VALUES ($1, $2, $3) RETURNING id`,
		arg.Title, arg.Confirmation.Message, arg.Confirmation.RedirectURL).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	return &gateway.Form{ID: id, Title: arg.Title, Confirmation: arg.Confirmation}, nil
}

func (s *Store) DeleteForm(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	return err
}

// HandleConfirmation renders the form's confirmation for entry, filling the
// {entry_id}, {transaction_id}, {payment_status} and {form_title} tags.
func (s *Store) HandleConfirmation(ctx context.Context, form *gateway.Form, entry *gateway.Entry) (gateway.Confirmation, error) {
	r := strings.NewReplacer(
		"{entry_id}", strconv.FormatInt(entry.ID, 10),
		"{transaction_id}", entry.TransactionID,
		"{payment_status}", string(entry.PaymentStatus),
		"{form_title}", form.Title,
	)
	c := gateway.Confirmation{
		Message:     r.Replace(form.Confirmation.Message),
		RedirectURL: r.Replace(form.Confirmation.RedirectURL),
	}
	if c.Message == "" && c.RedirectURL == "" {
		c.Message = "Thanks for contacting us! We will get in touch with you shortly."
	}
	return c, nil
}
