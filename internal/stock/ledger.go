package stock

import (
	"strings"

	"omnistock/backend/internal/domain"
)

type OversellPolicy string

const (
	OversellClamp  OversellPolicy = "clamp"
	OversellReject OversellPolicy = "reject"
)

func ParseOversellPolicy(raw string) OversellPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(OversellReject)) {
		return OversellReject
	}
	return OversellClamp
}

// Movement describes one applied (or refused) sale decrement.
type Movement struct {
	Brand     string
	Channel   domain.Channel
	Requested int
	Before    domain.BrandStock
	After     domain.BrandStock
	Oversold  bool
}

// Ledger applies the two stock update policies to an item: full recompute for
// staff edits and incremental decrement for sales.
type Ledger struct {
	policy       OversellPolicy
	defaultRatio float64
}

func NewLedger(policy OversellPolicy, defaultRatio float64) *Ledger {
	if policy != OversellReject {
		policy = OversellClamp
	}
	if ValidateRatio(defaultRatio) != nil {
		defaultRatio = domain.DefaultStockRatio
	}
	return &Ledger{policy: policy, defaultRatio: defaultRatio}
}

func (l *Ledger) Policy() OversellPolicy {
	return l.policy
}

// Build creates a new item from staff input and runs the first recompute.
func (l *Ledger) Build(name string, category string, ratio *float64, brands []domain.BrandInput) (domain.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Item{}, invalid("name", "is required")
	}

	item := domain.Item{
		Name:       name,
		Category:   strings.TrimSpace(category),
		StockRatio: l.defaultRatio,
		Brands:     make(map[string]domain.BrandStock, len(brands)),
	}
	if ratio != nil {
		if err := ValidateRatio(*ratio); err != nil {
			return domain.Item{}, err
		}
		item.StockRatio = *ratio
	}

	for _, in := range brands {
		brand := strings.TrimSpace(in.Name)
		if brand == "" {
			return domain.Item{}, invalid("brand", "is required")
		}
		if in.PriceCents < 0 {
			return domain.Item{}, invalid("price_cents", "must not be negative")
		}
		if in.Quantity < 0 {
			return domain.Item{}, invalid("quantity", "must not be negative")
		}
		item.Brands[brand] = domain.BrandStock{
			PriceCents:   in.PriceCents,
			Quantity:     in.Quantity,
			OnlineLimit:  domain.DefaultOnlineLimit,
			OfflineLimit: domain.DefaultOfflineLimit,
		}
	}

	if err := l.Recompute(&item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

// Recompute re-derives online and offline stock for every brand from its
// quantity and the item ratio.
func (l *Ledger) Recompute(item *domain.Item) error {
	if err := ValidateRatio(item.StockRatio); err != nil {
		return err
	}
	for name, brand := range item.Brands {
		online, offline, err := Split(brand.Quantity, item.StockRatio)
		if err != nil {
			return err
		}
		brand.OnlineStock = online
		brand.OfflineStock = offline
		item.Brands[name] = brand
	}
	return nil
}

// NeedsRecompute reports whether any brand's stored split differs from a
// fresh recompute.
func (l *Ledger) NeedsRecompute(item domain.Item) (bool, error) {
	fresh := item.Clone()
	if err := l.Recompute(&fresh); err != nil {
		return false, err
	}
	for name, brand := range item.Brands {
		if fresh.Brands[name] != brand {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) SetQuantity(item *domain.Item, brand string, quantity int) error {
	entry, ok := item.Brands[brand]
	if !ok {
		return invalid("brand", "unknown brand %q", brand)
	}
	if quantity < 0 {
		return invalid("quantity", "must not be negative")
	}
	entry.Quantity = quantity
	item.Brands[brand] = entry
	return l.Recompute(item)
}

func (l *Ledger) SetPrice(item *domain.Item, brand string, priceCents int64) error {
	entry, ok := item.Brands[brand]
	if !ok {
		return invalid("brand", "unknown brand %q", brand)
	}
	if priceCents < 0 {
		return invalid("price_cents", "must not be negative")
	}
	entry.PriceCents = priceCents
	item.Brands[brand] = entry
	return nil
}

func (l *Ledger) SetRatio(item *domain.Item, ratio float64) error {
	if err := ValidateRatio(ratio); err != nil {
		return err
	}
	item.StockRatio = ratio
	return l.Recompute(item)
}

// AddBrand inserts a brand or replaces the price and quantity of an existing
// one. Existing limits survive a replace.
func (l *Ledger) AddBrand(item *domain.Item, brand string, priceCents int64, quantity int) error {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return invalid("brand", "is required")
	}
	if priceCents < 0 {
		return invalid("price_cents", "must not be negative")
	}
	if quantity < 0 {
		return invalid("stock", "must not be negative")
	}
	if item.Brands == nil {
		item.Brands = make(map[string]domain.BrandStock)
	}

	entry, ok := item.Brands[brand]
	if !ok {
		entry = domain.BrandStock{
			OnlineLimit:  domain.DefaultOnlineLimit,
			OfflineLimit: domain.DefaultOfflineLimit,
		}
	}
	entry.PriceCents = priceCents
	entry.Quantity = quantity
	item.Brands[brand] = entry
	return l.Recompute(item)
}

func (l *Ledger) RemoveBrand(item *domain.Item, brand string) error {
	if _, ok := item.Brands[brand]; !ok {
		return invalid("brand", "unknown brand %q", brand)
	}
	delete(item.Brands, brand)
	return nil
}

func (l *Ledger) SetOnlineLimit(item *domain.Item, brand string, limit int) error {
	return l.SetLimits(item, brand, &limit, nil)
}

func (l *Ledger) SetOfflineLimit(item *domain.Item, brand string, limit int) error {
	return l.SetLimits(item, brand, nil, &limit)
}

// SetLimits changes either or both thresholds. Stock values are not touched.
func (l *Ledger) SetLimits(item *domain.Item, brand string, online *int, offline *int) error {
	entry, ok := item.Brands[brand]
	if !ok {
		return invalid("brand", "unknown brand %q", brand)
	}
	if online != nil {
		if *online < 0 {
			return invalid("online_limit", "must not be negative")
		}
		entry.OnlineLimit = *online
	}
	if offline != nil {
		if *offline < 0 {
			return invalid("offline_limit", "must not be negative")
		}
		entry.OfflineLimit = *offline
	}
	item.Brands[brand] = entry
	return nil
}

// Decrement applies a sale of qty units on channel. The total quantity and the
// sale channel's stock drop together; the other channel is left as is. Values
// that would go negative are clamped to zero and the movement is flagged as
// oversold, unless the ledger rejects oversells, in which case nothing changes
// and ErrOversell is returned.
func (l *Ledger) Decrement(item *domain.Item, brand string, channel domain.Channel, qty int) (Movement, error) {
	if !channel.Valid() {
		return Movement{}, invalid("channel", "must be online or offline, got %q", channel)
	}
	if qty <= 0 {
		return Movement{}, invalid("quantity", "must be positive, got %d", qty)
	}
	before, ok := item.Brands[brand]
	if !ok {
		return Movement{}, invalid("brand", "unknown brand %q", brand)
	}

	channelStock := before.OfflineStock
	if channel == domain.ChannelOnline {
		channelStock = before.OnlineStock
	}

	mv := Movement{
		Brand:     brand,
		Channel:   channel,
		Requested: qty,
		Before:    before,
		After:     before,
		Oversold:  qty > before.Quantity || qty > channelStock,
	}
	if mv.Oversold && l.policy == OversellReject {
		return mv, ErrOversell
	}

	mv.After.Quantity = subClamped(before.Quantity, qty)
	if channel == domain.ChannelOnline {
		mv.After.OnlineStock = subClamped(before.OnlineStock, qty)
	} else {
		mv.After.OfflineStock = subClamped(before.OfflineStock, qty)
	}
	item.Brands[brand] = mv.After
	return mv, nil
}

func subClamped(value int, delta int) int {
	if value-delta < 0 {
		return 0
	}
	return value - delta
}
