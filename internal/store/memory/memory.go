package memory

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

type Store struct {
	mu            sync.RWMutex
	items         map[string]domain.Item
	itemIDByName  map[string]string
	orders        map[string]domain.Order
	lastNumber    map[string]int64
	sales         []domain.Sale
	negotiations  map[string]domain.Negotiation
	notifications []domain.Notification
	usersByEmail  map[string]domain.UserAccount
	auditLogs     []domain.AuditLog
}

// seedUsers builds the staff accounts for dev/demo mode. Credentials come from
// SEED_OWNER_* and SEED_CASHIER_* and fall back to dev defaults with a
// warning. Customers sign up through the API.
func seedUsers() map[string]domain.UserAccount {
	ownerEmail := envOr("SEED_OWNER_EMAIL", "owner@omnistock.local")
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner12345")
	cashierEmail := envOr("SEED_CASHIER_EMAIL", "cashier@omnistock.local")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier12345")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials; set SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		email    string
		name     string
		password string
		role     string
	}{
		{ownerEmail, "Owner", ownerPwd, domain.RoleOwner},
		{cashierEmail, "Cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("failed to hash seed password", zap.String("email", u.email), zap.Error(err))
		}
		key := normalizeEmail(u.email)
		users[key] = domain.UserAccount{
			Email:     key,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store that only carries the seeded staff accounts.
func New() *Store {
	return &Store{
		items:         make(map[string]domain.Item),
		itemIDByName:  make(map[string]string),
		orders:        make(map[string]domain.Order),
		lastNumber:    make(map[string]int64),
		sales:         make([]domain.Sale, 0, 128),
		negotiations:  make(map[string]domain.Negotiation),
		notifications: make([]domain.Notification, 0, 32),
		usersByEmail:  seedUsers(),
		auditLogs:     make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store with staff accounts and a small demo catalogue.
func NewSeeded() *Store {
	s := New()
	ledger := stock.NewLedger(stock.OversellClamp, domain.DefaultStockRatio)
	catalogue := []struct {
		name     string
		category string
		brands   []domain.BrandInput
	}{
		{"Rice 5kg", "groceries", []domain.BrandInput{
			{Name: "Setra", PriceCents: 6500, Quantity: 100},
			{Name: "Pandan Wangi", PriceCents: 7200, Quantity: 60},
		}},
		{"Cooking Oil 2L", "groceries", []domain.BrandInput{
			{Name: "Bimoli", PriceCents: 3800, Quantity: 40},
			{Name: "Sania", PriceCents: 3500, Quantity: 75},
		}},
		{"Sugar 1kg", "groceries", []domain.BrandInput{
			{Name: "Gulaku", PriceCents: 1700, Quantity: 12},
		}},
		{"Instant Coffee", "beverage", []domain.BrandInput{
			{Name: "Kapal Api", PriceCents: 1200, Quantity: 200},
			{Name: "Nescafe", PriceCents: 1500, Quantity: 90},
		}},
	}

	now := time.Now().UTC()
	for _, entry := range catalogue {
		item, err := ledger.Build(entry.name, entry.category, nil, entry.brands)
		if err != nil {
			zap.L().Fatal("failed to build seed item", zap.String("name", entry.name), zap.Error(err))
		}
		item.ID = xid.New("itm")
		item.CreatedAt = now
		item.UpdatedAt = now
		s.items[item.ID] = item
		s.itemIDByName[item.Name] = item.ID
	}
	return s
}

func (s *Store) ListItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category == items[j].Category {
			return items[i].Name < items[j].Name
		}
		return items[i].Category < items[j].Category
	})
	return items, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := item.Clone()
	return &out, nil
}

func (s *Store) GetItemByName(_ context.Context, name string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.itemIDByName[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := s.items[id].Clone()
	return &out, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.itemIDByName[item.Name]; exists {
		return nil, store.ErrConflict
	}
	if item.ID == "" {
		item.ID = xid.New("itm")
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item = item.Clone()

	s.items[item.ID] = item
	s.itemIDByName[item.Name] = item.ID
	out := item.Clone()
	return &out, nil
}

func (s *Store) SaveItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[item.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if current.Name != item.Name {
		if _, taken := s.itemIDByName[item.Name]; taken {
			return nil, store.ErrConflict
		}
		delete(s.itemIDByName, current.Name)
		s.itemIDByName[item.Name] = item.ID
	}

	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item = item.Clone()
	s.items[item.ID] = item
	out := item.Clone()
	return &out, nil
}

func (s *Store) SaveBrandStock(_ context.Context, itemID string, brand string, entry domain.BrandStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := item.Brands[brand]; !ok {
		return store.ErrNotFound
	}
	item = item.Clone()
	item.Brands[brand] = entry
	item.UpdatedAt = time.Now().UTC()
	s.items[itemID] = item
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	delete(s.itemIDByName, item.Name)
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if order.Source != domain.OrderSourceInStore && order.Source != domain.OrderSourceWeb {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if _, exists := s.orders[order.ID]; exists {
		return nil, store.ErrConflict
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	s.lastNumber[order.Source]++
	order.Number = s.lastNumber[order.Source]
	order.Lines = slices.Clone(order.Lines)

	s.orders[order.ID] = order
	out := order
	out.Lines = slices.Clone(order.Lines)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, source string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if source != "" && order.Source != source {
			continue
		}
		order.Lines = slices.Clone(order.Lines)
		out = append(out, order)
	}
	if source == domain.OrderSourceInStore {
		sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	} else {
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].Number > out[j].Number
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertSales(_ context.Context, sales []domain.Sale) error {
	for _, sale := range sales {
		if sale.QuantitySold <= 0 || !sale.Channel.Valid() {
			return store.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, sale := range sales {
		if sale.ID == "" {
			sale.ID = xid.New("sal")
		}
		if sale.CreatedAt.IsZero() {
			sale.CreatedAt = now
		}
		s.sales = append(s.sales, sale)
	}
	return nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SalesFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if filter.Channel != "" && sale.Channel != filter.Channel {
			continue
		}
		if filter.ItemName != "" && sale.ItemName != filter.ItemName {
			continue
		}
		out = append(out, sale)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateNegotiation(_ context.Context, negotiation domain.Negotiation) (*domain.Negotiation, error) {
	if len(negotiation.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if negotiation.ID == "" {
		negotiation.ID = xid.New("neg")
	}
	if negotiation.CreatedAt.IsZero() {
		negotiation.CreatedAt = time.Now().UTC()
	}
	if negotiation.Status == "" {
		negotiation.Status = domain.NegotiationWaiting
	}
	negotiation.Items = slices.Clone(negotiation.Items)
	s.negotiations[negotiation.ID] = negotiation

	out := cloneNegotiation(negotiation)
	return &out, nil
}

func (s *Store) GetNegotiation(_ context.Context, id string) (*domain.Negotiation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	negotiation, ok := s.negotiations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneNegotiation(negotiation)
	return &out, nil
}

func (s *Store) ListNegotiations(_ context.Context, customerEmail string) ([]domain.Negotiation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email := normalizeEmail(customerEmail)
	out := make([]domain.Negotiation, 0, len(s.negotiations))
	for _, negotiation := range s.negotiations {
		if email != "" && normalizeEmail(negotiation.Customer.Email) != email {
			continue
		}
		out = append(out, cloneNegotiation(negotiation))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DecideNegotiation(_ context.Context, id string, status domain.NegotiationStatus, at time.Time) (*domain.Negotiation, error) {
	if status != domain.NegotiationAccepted && status != domain.NegotiationRejected {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	negotiation, ok := s.negotiations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if negotiation.Status != domain.NegotiationWaiting {
		return nil, store.ErrConflict
	}
	decidedAt := at.UTC()
	negotiation.Status = status
	negotiation.DecidedAt = &decidedAt
	s.negotiations[id] = negotiation

	out := cloneNegotiation(negotiation)
	return &out, nil
}

func (s *Store) RedeemNegotiation(_ context.Context, id string, orderID string) error {
	if orderID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	negotiation, ok := s.negotiations[id]
	if !ok {
		return store.ErrNotFound
	}
	if negotiation.Status != domain.NegotiationAccepted || negotiation.OrderID != "" {
		return store.ErrConflict
	}
	negotiation.OrderID = orderID
	s.negotiations[id] = negotiation
	return nil
}

func (s *Store) CreateNotification(_ context.Context, notification domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if notification.ID == "" {
		notification.ID = xid.New("ntf")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	s.notifications = append(s.notifications, notification)
	out := notification
	return &out, nil
}

func (s *Store) ListNotifications(_ context.Context, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, 0, len(s.notifications))
	for i := len(s.notifications) - 1; i >= 0; i-- {
		out = append(out, s.notifications[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	key := normalizeEmail(user.Email)
	if key == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[key]; exists {
		return store.ErrConflict
	}
	user.Email = key
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByEmail[key] = user
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[normalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func cloneNegotiation(src domain.Negotiation) domain.Negotiation {
	out := src
	out.Items = slices.Clone(src.Items)
	if src.DecidedAt != nil {
		at := *src.DecidedAt
		out.DecidedAt = &at
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
