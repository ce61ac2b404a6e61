package domain

import (
	"sort"
	"time"
)

type Channel string

const (
	ChannelOnline  Channel = "online"
	ChannelOffline Channel = "offline"
)

func (c Channel) Valid() bool {
	return c == ChannelOnline || c == ChannelOffline
}

const (
	DefaultStockRatio   = 0.8
	DefaultOnlineLimit  = 50
	DefaultOfflineLimit = 10
)

// BrandStock holds everything tracked for one brand of an item. Keeping the
// fields together means a brand is added or removed as a single map entry.
type BrandStock struct {
	PriceCents   int64 `json:"price_cents"`
	Quantity     int   `json:"quantity"`
	OnlineStock  int   `json:"online_stock"`
	OfflineStock int   `json:"offline_stock"`
	OnlineLimit  int   `json:"online_limit"`
	OfflineLimit int   `json:"offline_limit"`
}

type Item struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Category   string                `json:"category"`
	StockRatio float64               `json:"stock_ratio"`
	Brands     map[string]BrandStock `json:"brands"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// BrandNames returns the brand set in a stable order.
func (i Item) BrandNames() []string {
	names := make([]string, 0, len(i.Brands))
	for name := range i.Brands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy so callers can mutate brands without aliasing
// the stored map.
func (i Item) Clone() Item {
	out := i
	out.Brands = make(map[string]BrandStock, len(i.Brands))
	for name, brand := range i.Brands {
		out.Brands[name] = brand
	}
	return out
}

type BrandInput struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type ItemCreateRequest struct {
	Name       string       `json:"name"`
	Category   string       `json:"category"`
	StockRatio *float64     `json:"stock_ratio,omitempty"`
	Brands     []BrandInput `json:"brands"`
}

// ItemUpdateRequest edits the descriptive fields and at most one brand's
// price or quantity per call.
type ItemUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	Brand      string  `json:"brand,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Quantity   *int    `json:"quantity,omitempty"`
}

type AddBrandRequest struct {
	Brand      string `json:"brand"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type EditStockRequest struct {
	Brand    string `json:"brand"`
	NewStock int    `json:"new_stock"`
}

type EditRatioRequest struct {
	NewRatio float64 `json:"new_ratio"`
}

type EditLimitRequest struct {
	Brand        string `json:"brand"`
	OnlineLimit  *int   `json:"online_limit,omitempty"`
	OfflineLimit *int   `json:"offline_limit,omitempty"`
}

type Sale struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	ItemID          string    `json:"item_id"`
	ItemName        string    `json:"item_name"`
	Brand           string    `json:"brand"`
	Category        string    `json:"category"`
	QuantitySold    int       `json:"quantity_sold"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Channel         Channel   `json:"channel"`
	BuyerName       string    `json:"buyer_name"`
	BuyerEmail      string    `json:"buyer_email"`
	CreatedAt       time.Time `json:"created_at"`
}

type SalesFilter struct {
	From     time.Time
	Channel  Channel
	ItemName string
}

const (
	OrderSourceInStore = "in_store"
	OrderSourceWeb     = "web"
)

type OrderLine struct {
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents,omitempty"`
	TotalCents int64  `json:"total_cents,omitempty"`
}

type Order struct {
	ID            string      `json:"id"`
	Number        int64       `json:"number"`
	Source        string      `json:"source"`
	Channel       Channel     `json:"channel"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Address       string      `json:"address,omitempty"`
	NegotiationID string      `json:"negotiation_id,omitempty"`
	Lines         []OrderLine `json:"lines"`
	SubtotalCents int64       `json:"subtotal_cents"`
	DeliveryCents int64       `json:"delivery_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	CreatedAt     time.Time   `json:"created_at"`
}

type InStoreOrderRequest struct {
	Channel       Channel     `json:"channel,omitempty"`
	BuyerName     string      `json:"buyer_name,omitempty"`
	BuyerEmail    string      `json:"buyer_email,omitempty"`
	NegotiationID string      `json:"negotiation_id,omitempty"`
	TotalCents    int64       `json:"total_cents"`
	Items         []OrderLine `json:"items"`
}

type OnlineOrderRequest struct {
	Name          string      `json:"name"`
	Email         string      `json:"email,omitempty"`
	Address       string      `json:"address"`
	NegotiationID string      `json:"negotiation_id,omitempty"`
	SubtotalCents int64       `json:"subtotal_cents"`
	DeliveryCents int64       `json:"delivery_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	Items         []OrderLine `json:"items"`
}

type StockUpdate struct {
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	DecreaseBy int    `json:"decreased_by"`
	Oversold   bool   `json:"oversold,omitempty"`
}

type SkippedLine struct {
	Index  int    `json:"index"`
	Name   string `json:"name,omitempty"`
	Brand  string `json:"brand,omitempty"`
	Reason string `json:"reason"`
}

type OrderResponse struct {
	OrderID            string        `json:"order_id"`
	OrderNumber        int64         `json:"order_number"`
	Channel            Channel       `json:"channel"`
	SalesCount         int           `json:"sales_count"`
	StockUpdates       []StockUpdate `json:"stock_updates"`
	Skipped            []SkippedLine `json:"skipped,omitempty"`
	NegotiationApplied bool          `json:"negotiation_applied"`
	NegotiationRatio   float64       `json:"negotiation_ratio"`
}

type NegotiationStatus string

const (
	NegotiationWaiting  NegotiationStatus = "Waiting"
	NegotiationAccepted NegotiationStatus = "Accepted"
	NegotiationRejected NegotiationStatus = "Rejected"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type NegotiationLine struct {
	Name           string `json:"name"`
	Brand          string `json:"brand"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Negotiation struct {
	ID                   string            `json:"id"`
	Customer             Customer          `json:"customer"`
	Items                []NegotiationLine `json:"items"`
	OriginalTotalCents   int64             `json:"original_total_cents"`
	NegotiatedTotalCents int64             `json:"negotiated_total_cents"`
	Status               NegotiationStatus `json:"status"`
	CreatedAt            time.Time         `json:"created_at"`
	DecidedAt            *time.Time        `json:"decided_at,omitempty"`
	OrderID              string            `json:"order_id,omitempty"`
}

type NegotiationItemInput struct {
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	Quantity   int    `json:"quantity"`
	TotalCents int64  `json:"total_cents"`
}

type NegotiationRequest struct {
	Customer             Customer               `json:"customer"`
	Items                []NegotiationItemInput `json:"items"`
	OriginalTotalCents   int64                  `json:"original_total_cents"`
	NegotiatedTotalCents int64                  `json:"negotiated_total_cents"`
}

type NegotiationDecisionRequest struct {
	Accept bool `json:"accept"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	ItemName  string    `json:"item_name"`
	Brand     string    `json:"brand"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type CheckStockRequest struct {
	ItemName string `json:"item_name"`
	Brand    string `json:"brand"`
	Quantity int    `json:"quantity"`
}

type CheckStockResponse struct {
	Available    bool     `json:"available"`
	OnlineStock  int      `json:"online_stock"`
	Message      string   `json:"message"`
	Alternatives []string `json:"alternatives,omitempty"`
}

const (
	RoleOwner    = "owner"
	RoleCashier  = "cashier"
	RoleCustomer = "customer"
)

type Actor struct {
	Email string
	Name  string
	Role  string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Email     string
	Name      string
	Phone     string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   string      `json:"expires_at"`
	User        UserProfile `json:"user"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorEmail string    `json:"actor_email"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
