package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

type negotiationRow struct {
	ID                   string       `db:"id"`
	CustomerName         string       `db:"customer_name"`
	CustomerEmail        string       `db:"customer_email"`
	CustomerPhone        string       `db:"customer_phone"`
	Items                []byte       `db:"items"`
	OriginalTotalCents   int64        `db:"original_total_cents"`
	NegotiatedTotalCents int64        `db:"negotiated_total_cents"`
	Status               string       `db:"status"`
	CreatedAt            time.Time    `db:"created_at"`
	DecidedAt            sql.NullTime `db:"decided_at"`
	OrderID              string       `db:"order_id"`
}

func (r negotiationRow) negotiation() (domain.Negotiation, error) {
	n := domain.Negotiation{
		ID: r.ID,
		Customer: domain.Customer{
			Name:  r.CustomerName,
			Email: r.CustomerEmail,
			Phone: r.CustomerPhone,
		},
		OriginalTotalCents:   r.OriginalTotalCents,
		NegotiatedTotalCents: r.NegotiatedTotalCents,
		Status:               domain.NegotiationStatus(r.Status),
		CreatedAt:            r.CreatedAt,
		OrderID:              r.OrderID,
	}
	if r.DecidedAt.Valid {
		at := r.DecidedAt.Time
		n.DecidedAt = &at
	}
	if err := json.Unmarshal(r.Items, &n.Items); err != nil {
		return domain.Negotiation{}, err
	}
	return n, nil
}

func (s *Store) CreateNegotiation(ctx context.Context, negotiation domain.Negotiation) (*domain.Negotiation, error) {
	if len(negotiation.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if negotiation.ID == "" {
		negotiation.ID = xid.New("neg")
	}
	if negotiation.CreatedAt.IsZero() {
		negotiation.CreatedAt = time.Now().UTC()
	}
	if negotiation.Status == "" {
		negotiation.Status = domain.NegotiationWaiting
	}
	items, err := json.Marshal(negotiation.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO negotiations (
			id, customer_name, customer_email, customer_phone, items,
			original_total_cents, negotiated_total_cents, status, created_at
		) VALUES (
			:id, :customer_name, :customer_email, :customer_phone, :items,
			:original_total_cents, :negotiated_total_cents, :status, :created_at
		)
	`, negotiationRow{
		ID:                   negotiation.ID,
		CustomerName:         negotiation.Customer.Name,
		CustomerEmail:        negotiation.Customer.Email,
		CustomerPhone:        negotiation.Customer.Phone,
		Items:                items,
		OriginalTotalCents:   negotiation.OriginalTotalCents,
		NegotiatedTotalCents: negotiation.NegotiatedTotalCents,
		Status:               string(negotiation.Status),
		CreatedAt:            negotiation.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &negotiation, nil
}

func (s *Store) GetNegotiation(ctx context.Context, id string) (*domain.Negotiation, error) {
	var row negotiationRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM negotiations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	n, err := row.negotiation()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNegotiations(ctx context.Context, customerEmail string) ([]domain.Negotiation, error) {
	query := `SELECT * FROM negotiations`
	args := []any{}
	if email := strings.ToLower(strings.TrimSpace(customerEmail)); email != "" {
		query += ` WHERE lower(customer_email) = $1`
		args = append(args, email)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []negotiationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Negotiation, 0, len(rows))
	for _, r := range rows {
		n, err := r.negotiation()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) DecideNegotiation(ctx context.Context, id string, status domain.NegotiationStatus, at time.Time) (*domain.Negotiation, error) {
	if status != domain.NegotiationAccepted && status != domain.NegotiationRejected {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var row negotiationRow
	if err := tx.GetContext(ctx, &row, `SELECT * FROM negotiations WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if domain.NegotiationStatus(row.Status) != domain.NegotiationWaiting {
		return nil, store.ErrConflict
	}

	decidedAt := at.UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE negotiations SET status = $2, decided_at = $3 WHERE id = $1
	`, id, string(status), decidedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	row.Status = string(status)
	row.DecidedAt = sql.NullTime{Time: decidedAt, Valid: true}
	n, err := row.negotiation()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) RedeemNegotiation(ctx context.Context, id string, orderID string) error {
	if orderID == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE negotiations SET order_id = $2
		WHERE id = $1 AND status = $3 AND order_id = ''
	`, id, orderID, string(domain.NegotiationAccepted))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM negotiations WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
