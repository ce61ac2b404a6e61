package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

type orderRow struct {
	ID            string    `db:"id"`
	Number        int64     `db:"number"`
	Source        string    `db:"source"`
	Channel       string    `db:"channel"`
	CustomerName  string    `db:"customer_name"`
	CustomerEmail string    `db:"customer_email"`
	Address       string    `db:"address"`
	NegotiationID string    `db:"negotiation_id"`
	Lines         []byte    `db:"lines"`
	SubtotalCents int64     `db:"subtotal_cents"`
	DeliveryCents int64     `db:"delivery_cents"`
	TaxCents      int64     `db:"tax_cents"`
	TotalCents    int64     `db:"total_cents"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r orderRow) order() (domain.Order, error) {
	order := domain.Order{
		ID:            r.ID,
		Number:        r.Number,
		Source:        r.Source,
		Channel:       domain.Channel(r.Channel),
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		Address:       r.Address,
		NegotiationID: r.NegotiationID,
		SubtotalCents: r.SubtotalCents,
		DeliveryCents: r.DeliveryCents,
		TaxCents:      r.TaxCents,
		TotalCents:    r.TotalCents,
		CreatedAt:     r.CreatedAt,
	}
	if len(r.Lines) > 0 {
		if err := json.Unmarshal(r.Lines, &order.Lines); err != nil {
			return domain.Order{}, err
		}
	}
	return order, nil
}

type saleRow struct {
	ID              string    `db:"id"`
	OrderID         string    `db:"order_id"`
	ItemID          string    `db:"item_id"`
	ItemName        string    `db:"item_name"`
	Brand           string    `db:"brand"`
	Category        string    `db:"category"`
	QuantitySold    int       `db:"quantity_sold"`
	UnitPriceCents  int64     `db:"unit_price_cents"`
	TotalPriceCents int64     `db:"total_price_cents"`
	Channel         string    `db:"channel"`
	BuyerName       string    `db:"buyer_name"`
	BuyerEmail      string    `db:"buyer_email"`
	CreatedAt       time.Time `db:"created_at"`
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.Source != domain.OrderSourceInStore && order.Source != domain.OrderSourceWeb {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Lines == nil {
		order.Lines = []domain.OrderLine{}
	}
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Serializes numbering per source for the rest of the transaction.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "orders:"+order.Source); err != nil {
		return nil, err
	}
	if err := tx.GetContext(ctx, &order.Number, `SELECT COALESCE(MAX(number), 0) + 1 FROM orders WHERE source = $1`, order.Source); err != nil {
		return nil, err
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO orders (
			id, number, source, channel, customer_name, customer_email, address, negotiation_id,
			lines, subtotal_cents, delivery_cents, tax_cents, total_cents, created_at
		) VALUES (
			:id, :number, :source, :channel, :customer_name, :customer_email, :address, :negotiation_id,
			:lines, :subtotal_cents, :delivery_cents, :tax_cents, :total_cents, :created_at
		)
	`, orderRow{
		ID:            order.ID,
		Number:        order.Number,
		Source:        order.Source,
		Channel:       string(order.Channel),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Address:       order.Address,
		NegotiationID: order.NegotiationID,
		Lines:         lines,
		SubtotalCents: order.SubtotalCents,
		DeliveryCents: order.DeliveryCents,
		TaxCents:      order.TaxCents,
		TotalCents:    order.TotalCents,
		CreatedAt:     order.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, source string, limit int) ([]domain.Order, error) {
	order := "created_at DESC, number DESC"
	if source == domain.OrderSourceInStore {
		order = "number ASC"
	}
	query := `SELECT * FROM orders`
	args := []any{}
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += ` ORDER BY ` + order
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		o, err := r.order()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) InsertSales(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]saleRow, 0, len(sales))
	for _, sale := range sales {
		if sale.QuantitySold <= 0 || !sale.Channel.Valid() {
			return store.ErrInvalidInput
		}
		if sale.ID == "" {
			sale.ID = xid.New("sal")
		}
		if sale.CreatedAt.IsZero() {
			sale.CreatedAt = now
		}
		rows = append(rows, saleRow{
			ID:              sale.ID,
			OrderID:         sale.OrderID,
			ItemID:          sale.ItemID,
			ItemName:        sale.ItemName,
			Brand:           sale.Brand,
			Category:        sale.Category,
			QuantitySold:    sale.QuantitySold,
			UnitPriceCents:  sale.UnitPriceCents,
			TotalPriceCents: sale.TotalPriceCents,
			Channel:         string(sale.Channel),
			BuyerName:       sale.BuyerName,
			BuyerEmail:      sale.BuyerEmail,
			CreatedAt:       sale.CreatedAt,
		})
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sales (
			id, order_id, item_id, item_name, brand, category, quantity_sold,
			unit_price_cents, total_price_cents, channel, buyer_name, buyer_email, created_at
		) VALUES (
			:id, :order_id, :item_id, :item_name, :brand, :category, :quantity_sold,
			:unit_price_cents, :total_price_cents, :channel, :buyer_name, :buyer_email, :created_at
		)
	`, rows)
	return err
}

func (s *Store) ListSales(ctx context.Context, filter domain.SalesFilter) ([]domain.Sale, error) {
	conditions := []string{}
	args := map[string]any{}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= :from")
		args["from"] = filter.From
	}
	if filter.Channel != "" {
		conditions = append(conditions, "channel = :channel")
		args["channel"] = string(filter.Channel)
	}
	if filter.ItemName != "" {
		conditions = append(conditions, "item_name = :item_name")
		args["item_name"] = filter.ItemName
	}

	query := `SELECT * FROM sales`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC`

	query, bound, err := sqlx.Named(query, args)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, query, bound...); err != nil {
		return nil, err
	}
	out := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Sale{
			ID:              r.ID,
			OrderID:         r.OrderID,
			ItemID:          r.ItemID,
			ItemName:        r.ItemName,
			Brand:           r.Brand,
			Category:        r.Category,
			QuantitySold:    r.QuantitySold,
			UnitPriceCents:  r.UnitPriceCents,
			TotalPriceCents: r.TotalPriceCents,
			Channel:         domain.Channel(r.Channel),
			BuyerName:       r.BuyerName,
			BuyerEmail:      r.BuyerEmail,
			CreatedAt:       r.CreatedAt,
		})
	}
	return out, nil
}
