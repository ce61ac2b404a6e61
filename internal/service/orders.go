package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/pricing"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

const (
	skipMissingFields = "missing name or brand"
	skipBadQuantity   = "quantity must be positive"
	skipUnknownItem   = "unknown item"
	skipUnknownBrand  = "unknown brand"
	skipInsufficient  = "insufficient stock"
)

// orderDraft is an order whose header is settled and whose lines still need
// validation and stock reservation.
type orderDraft struct {
	order         domain.Order
	buyerName     string
	buyerEmail    string
	negotiationID string
	// clientTotal is the fallback negotiated total when no negotiation is
	// referenced. Zero means prices pass through.
	clientTotal int64
}

// resolvedLine is a validated order line matched to a stored item.
type resolvedLine struct {
	index     int
	itemID    string
	name      string
	brand     string
	category  string
	quantity  int
	unitCents int64
}

// CreateInStoreOrder records a counter sale. The channel must be explicit;
// callers that still infer it from the buyer email do so before calling.
func (s *Service) CreateInStoreOrder(ctx context.Context, req domain.InStoreOrderRequest) (domain.OrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleCashier); err != nil {
		return domain.OrderResponse{}, err
	}
	if !req.Channel.Valid() {
		return domain.OrderResponse{}, &ValidationError{Field: "channel", Message: "must be online or offline"}
	}

	buyerName := strings.TrimSpace(req.BuyerName)
	if buyerName == "" {
		buyerName = "N/A"
	}
	buyerEmail := strings.ToLower(strings.TrimSpace(req.BuyerEmail))
	if buyerEmail == "" {
		buyerEmail = "N/A"
	}

	return s.processOrder(ctx, orderDraft{
		order: domain.Order{
			Source:        domain.OrderSourceInStore,
			Channel:       req.Channel,
			CustomerName:  buyerName,
			CustomerEmail: strings.TrimSpace(req.BuyerEmail),
			Lines:         req.Items,
			SubtotalCents: req.TotalCents,
			TotalCents:    req.TotalCents,
		},
		buyerName:     buyerName,
		buyerEmail:    buyerEmail,
		negotiationID: strings.TrimSpace(req.NegotiationID),
	})
}

// CreateOnlineOrder records a storefront order. Web orders always sell from
// online stock. The subtotal already reflects any negotiated discount.
func (s *Service) CreateOnlineOrder(ctx context.Context, req domain.OnlineOrderRequest) (domain.OrderResponse, error) {
	actor, err := requireRole(ctx, domain.RoleCustomer, domain.RoleOwner, domain.RoleCashier)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Anonymous"
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" && actor.Role == domain.RoleCustomer {
		email = actor.Email
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = "N/A"
	}

	buyerEmail := email
	if buyerEmail == "" {
		buyerEmail = "N/A"
	}

	return s.processOrder(ctx, orderDraft{
		order: domain.Order{
			Source:        domain.OrderSourceWeb,
			Channel:       domain.ChannelOnline,
			CustomerName:  name,
			CustomerEmail: email,
			Address:       address,
			Lines:         req.Items,
			SubtotalCents: req.SubtotalCents,
			DeliveryCents: req.DeliveryCents,
			TaxCents:      req.TaxCents,
			TotalCents:    req.TotalCents,
		},
		buyerName:     name,
		buyerEmail:    buyerEmail,
		negotiationID: strings.TrimSpace(req.NegotiationID),
		clientTotal:   req.SubtotalCents,
	})
}

// processOrder runs Validate, Reserve, Record and Respond for one order.
// Lines that cannot be sold are reported in Skipped; they never fail the
// order. Lines already reserved stay applied when a later line hits a store
// failure.
func (s *Service) processOrder(ctx context.Context, draft orderDraft) (domain.OrderResponse, error) {
	if len(draft.order.Lines) == 0 {
		return domain.OrderResponse{}, &ValidationError{Field: "items", Message: "order has no items"}
	}

	resp := domain.OrderResponse{
		Channel:      draft.order.Channel,
		StockUpdates: []domain.StockUpdate{},
		Skipped:      []domain.SkippedLine{},
	}

	lines, err := s.resolveLines(ctx, draft.order.Lines, &resp)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	ratio, applied, err := s.orderRatio(ctx, draft, lines)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	resp.NegotiationApplied = applied
	resp.NegotiationRatio = pricing.Float(ratio)

	order := draft.order
	order.ID = xid.New("ord")
	order.NegotiationID = draft.negotiationID
	if draft.negotiationID != "" {
		if err := s.repo.RedeemNegotiation(ctx, draft.negotiationID, order.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.OrderResponse{}, fmt.Errorf("%w: negotiation %s was already used", err, draft.negotiationID)
			}
			return domain.OrderResponse{}, err
		}
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		if draft.negotiationID != "" {
			s.logger.Error("negotiation redeemed by an order that was not stored",
				zap.String("negotiation_id", draft.negotiationID),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
		return domain.OrderResponse{}, err
	}
	resp.OrderID = created.ID
	resp.OrderNumber = created.Number

	sales := make([]domain.Sale, 0, len(lines))
	for _, line := range lines {
		mv, alerts, err := s.reserve(ctx, line, created.Channel)
		if err != nil {
			if reason, ok := skipReason(err); ok {
				resp.Skipped = append(resp.Skipped, domain.SkippedLine{Index: line.index, Name: line.name, Brand: line.brand, Reason: reason})
				continue
			}
			s.logger.Error("reserve order line failed",
				zap.String("order_id", created.ID),
				zap.String("item", line.name),
				zap.String("brand", line.brand),
				zap.Error(err),
			)
			if rerr := s.recordSales(ctx, *created, sales); rerr != nil {
				s.logger.Error("record sales after failed reserve",
					zap.String("order_id", created.ID),
					zap.Int("sales", len(sales)),
					zap.Error(rerr),
				)
			}
			return domain.OrderResponse{}, err
		}

		s.alerts.LowStock(ctx, alerts)

		unit, total := pricing.Scale(line.unitCents, line.quantity, ratio)
		sales = append(sales, domain.Sale{
			ID:              xid.New("sal"),
			OrderID:         created.ID,
			ItemID:          line.itemID,
			ItemName:        line.name,
			Brand:           line.brand,
			Category:        line.category,
			QuantitySold:    line.quantity,
			UnitPriceCents:  unit,
			TotalPriceCents: total,
			Channel:         created.Channel,
			BuyerName:       draft.buyerName,
			BuyerEmail:      draft.buyerEmail,
			CreatedAt:       s.now(),
		})
		resp.StockUpdates = append(resp.StockUpdates, domain.StockUpdate{
			Name:       line.name,
			Brand:      line.brand,
			DecreaseBy: line.quantity,
			Oversold:   mv.Oversold,
		})
		if mv.Oversold {
			s.logger.Info("oversell clamped",
				zap.String("order_id", created.ID),
				zap.String("item", line.name),
				zap.String("brand", line.brand),
				zap.Int("requested", line.quantity),
			)
		}
	}

	if err := s.recordSales(ctx, *created, sales); err != nil {
		return domain.OrderResponse{}, err
	}
	resp.SalesCount = len(sales)

	s.logger.Info("order recorded",
		zap.String("order_id", created.ID),
		zap.Int64("number", created.Number),
		zap.String("source", created.Source),
		zap.String("channel", string(created.Channel)),
		zap.Int("sales", len(sales)),
		zap.Int("skipped", len(resp.Skipped)),
	)
	return resp, nil
}

// resolveLines validates each requested line and matches it to an item. Bad
// lines are appended to resp.Skipped.
func (s *Service) resolveLines(ctx context.Context, requested []domain.OrderLine, resp *domain.OrderResponse) ([]resolvedLine, error) {
	lines := make([]resolvedLine, 0, len(requested))
	for i, in := range requested {
		name := strings.TrimSpace(in.Name)
		brand := strings.TrimSpace(in.Brand)
		skip := func(reason string) {
			resp.Skipped = append(resp.Skipped, domain.SkippedLine{Index: i, Name: name, Brand: brand, Reason: reason})
		}

		switch {
		case name == "" || brand == "":
			skip(skipMissingFields)
			continue
		case in.Quantity <= 0:
			skip(skipBadQuantity)
			continue
		}

		item, err := s.repo.GetItemByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			skip(skipUnknownItem)
			continue
		}
		if err != nil {
			return nil, err
		}
		entry, ok := item.Brands[brand]
		if !ok {
			skip(skipUnknownBrand)
			continue
		}

		unit := entry.PriceCents
		if unit <= 0 {
			unit = in.PriceCents
		}
		lines = append(lines, resolvedLine{
			index:     i,
			itemID:    item.ID,
			name:      item.Name,
			brand:     brand,
			category:  item.Category,
			quantity:  in.Quantity,
			unitCents: unit,
		})
	}
	return lines, nil
}

// orderRatio returns the price scale for the order. A referenced negotiation
// must be Accepted, unused and cover exactly the order's lines; its own
// negotiated/original totals set the scale. Without one a web order's
// subtotal is compared with the catalogue total.
func (s *Service) orderRatio(ctx context.Context, draft orderDraft, lines []resolvedLine) (decimal.Decimal, bool, error) {
	one := decimal.NewFromInt(1)

	if draft.negotiationID != "" {
		negotiation, err := s.repo.GetNegotiation(ctx, draft.negotiationID)
		if err != nil {
			return one, false, err
		}
		if negotiation.Status != domain.NegotiationAccepted {
			return one, false, &ValidationError{Field: "negotiation_id", Message: fmt.Sprintf("negotiation is %s, not Accepted", negotiation.Status)}
		}
		if actor, _ := ActorFromContext(ctx); actor.Role == domain.RoleCustomer &&
			!strings.EqualFold(actor.Email, negotiation.Customer.Email) {
			return one, false, fmt.Errorf("%w: negotiation belongs to another customer", ErrForbidden)
		}
		if negotiation.OrderID != "" {
			return one, false, fmt.Errorf("%w: negotiation %s was already used by order %s", store.ErrConflict, negotiation.ID, negotiation.OrderID)
		}
		if !coversNegotiation(negotiation.Items, lines) {
			return one, false, &ValidationError{Field: "negotiation_id", Message: "order lines do not match the negotiated items"}
		}
		ratio := pricing.NegotiatedRatio(negotiation.NegotiatedTotalCents, negotiation.OriginalTotalCents)
		return ratio, !ratio.Equal(one), nil
	}

	if draft.clientTotal <= 0 {
		return one, false, nil
	}
	priced := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		priced = append(priced, pricing.Line{UnitPriceCents: line.unitCents, Quantity: line.quantity})
	}
	ratio := pricing.Ratio(draft.clientTotal, priced)
	return ratio, !ratio.Equal(one), nil
}

// coversNegotiation reports whether lines hold the same item, brand and
// quantity totals as the negotiated items.
func coversNegotiation(negotiated []domain.NegotiationLine, lines []resolvedLine) bool {
	key := func(name, brand string) string {
		return strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.ToLower(strings.TrimSpace(brand))
	}
	want := make(map[string]int, len(negotiated))
	for _, item := range negotiated {
		want[key(item.Name, item.Brand)] += item.Quantity
	}
	got := make(map[string]int, len(lines))
	for _, line := range lines {
		got[key(line.name, line.brand)] += line.quantity
	}
	if len(got) != len(want) {
		return false
	}
	for k, qty := range want {
		if got[k] != qty {
			return false
		}
	}
	return true
}

// reserve applies one line's decrement under the item lock and returns the
// movement together with any limit alerts raised by the new stock.
func (s *Service) reserve(ctx context.Context, line resolvedLine, channel domain.Channel) (stock.Movement, []stock.Alert, error) {
	var (
		mv     stock.Movement
		alerts []stock.Alert
	)
	err := s.withItemLock(ctx, line.itemID, func() error {
		item, err := s.repo.GetItem(ctx, line.itemID)
		if err != nil {
			return err
		}
		current := item.Clone()
		mv, err = s.ledger.Decrement(&current, line.brand, channel, line.quantity)
		if err != nil {
			return err
		}
		if err := s.repo.SaveBrandStock(ctx, current.ID, line.brand, mv.After); err != nil {
			return err
		}
		alerts = stock.CheckLimits(current, line.brand)
		return nil
	})
	return mv, alerts, err
}

func skipReason(err error) (string, bool) {
	var invalid *stock.ValidationError
	switch {
	case errors.Is(err, stock.ErrOversell):
		return skipInsufficient, true
	case errors.Is(err, store.ErrNotFound):
		return skipUnknownItem, true
	case errors.As(err, &invalid) && invalid.Field == "brand":
		return skipUnknownBrand, true
	}
	return "", false
}

// recordSales stores the order's sales, then publishes them and drops cached
// reports. Publishing is best-effort and bounded by publishTimeout, detached
// from the caller's cancellation.
func (s *Service) recordSales(ctx context.Context, order domain.Order, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	if err := s.repo.InsertSales(ctx, sales); err != nil {
		return err
	}
	s.invalidateReports(ctx)

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.PublishSales(publishCtx, order, sales); err != nil {
		s.logger.Warn("publish sales failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) ListInStoreOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, domain.OrderSourceInStore, limit)
}

func (s *Service) ListOnlineOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, domain.OrderSourceWeb, limit)
}
