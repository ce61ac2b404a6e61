package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/store/memory"
)

var (
	ownerActor    = domain.Actor{Email: "owner@omnistock.local", Name: "Owner", Role: domain.RoleOwner}
	cashierActor  = domain.Actor{Email: "cashier@omnistock.local", Name: "Cashier", Role: domain.RoleCashier}
	customerActor = domain.Actor{Email: "ana@example.com", Name: "Ana", Role: domain.RoleCustomer}
)

type recordingPublisher struct {
	mu     sync.Mutex
	orders []string
	sales  int
	err    error
}

func (p *recordingPublisher) PublishSales(_ context.Context, order domain.Order, sales []domain.Sale) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, order.ID)
	p.sales += len(sales)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type countingCache struct {
	mu          sync.Mutex
	entries     map[string]any
	gets        int
	hits        int
	invalidated int
}

func (c *countingCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	if d, ok := dest.(*domain.Dashboard); ok {
		*d = v.(domain.Dashboard)
	}
	return true, nil
}

func (c *countingCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]any{}
	}
	c.entries[key] = value
	return nil
}

func (c *countingCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.invalidated++
	return nil
}

func newTestService(t *testing.T, deps Dependencies) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	return New(repo, deps), repo
}

func as(actor domain.Actor) context.Context {
	return WithActor(context.Background(), actor)
}

func brandOf(t *testing.T, repo *memory.Store, item string, brand string) domain.BrandStock {
	t.Helper()
	got, err := repo.GetItemByName(context.Background(), item)
	if err != nil {
		t.Fatalf("get %s: %v", item, err)
	}
	entry, ok := got.Brands[brand]
	if !ok {
		t.Fatalf("brand %s missing on %s", brand, item)
	}
	return entry
}

func TestInStoreOrdersDecrementOnlyTheSaleChannel(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})
	ctx := as(cashierActor)

	first, err := svc.CreateInStoreOrder(ctx, domain.InStoreOrderRequest{
		Channel:    domain.ChannelOnline,
		BuyerEmail: "walkin@example.com",
		Items:      []domain.OrderLine{{Name: "Rice 5kg", Brand: "Setra", Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("first order: %v", err)
	}
	if first.SalesCount != 1 || first.OrderNumber != 1 {
		t.Fatalf("unexpected first response %+v", first)
	}
	got := brandOf(t, repo, "Rice 5kg", "Setra")
	if got.Quantity != 95 || got.OnlineStock != 75 || got.OfflineStock != 20 {
		t.Fatalf("after online sale expected 95/75/20, got %+v", got)
	}

	second, err := svc.CreateInStoreOrder(ctx, domain.InStoreOrderRequest{
		Channel: domain.ChannelOffline,
		Items:   []domain.OrderLine{{Name: "Rice 5kg", Brand: "Setra", Quantity: 25}},
	})
	if err != nil {
		t.Fatalf("second order: %v", err)
	}
	if second.OrderNumber != 2 {
		t.Fatalf("expected order number 2, got %d", second.OrderNumber)
	}
	if len(second.StockUpdates) != 1 || !second.StockUpdates[0].Oversold || second.StockUpdates[0].DecreaseBy != 25 {
		t.Fatalf("expected one oversold update, got %+v", second.StockUpdates)
	}
	got = brandOf(t, repo, "Rice 5kg", "Setra")
	if got.Quantity != 70 || got.OnlineStock != 75 || got.OfflineStock != 0 {
		t.Fatalf("after offline oversell expected 70/75/0, got %+v", got)
	}

	notifications, err := repo.ListNotifications(context.Background(), 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].Title != "Low Offline Stock Alert for Rice 5kg (Setra)" {
		t.Fatalf("expected a single low offline alert, got %+v", notifications)
	}

	sales, err := repo.ListSales(context.Background(), domain.SalesFilter{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 || sales[0].Channel != domain.ChannelOnline || sales[1].Channel != domain.ChannelOffline {
		t.Fatalf("unexpected sales %+v", sales)
	}
	if sales[1].TotalPriceCents != 25*6500 || sales[1].BuyerEmail != "N/A" {
		t.Fatalf("unexpected offline sale %+v", sales[1])
	}
}

func TestOrderSkipsInvalidLines(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})

	resp, err := svc.CreateInStoreOrder(as(cashierActor), domain.InStoreOrderRequest{
		Channel: domain.ChannelOffline,
		Items: []domain.OrderLine{
			{Name: "Rice 5kg", Quantity: 1},
			{Name: "Rice 5kg", Brand: "Setra", Quantity: 0},
			{Name: "Caviar", Brand: "Beluga", Quantity: 1},
			{Name: "Rice 5kg", Brand: "Unknown", Quantity: 1},
			{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if resp.SalesCount != 1 {
		t.Fatalf("expected one sale, got %d", resp.SalesCount)
	}
	wantReasons := []string{skipMissingFields, skipBadQuantity, skipUnknownItem, skipUnknownBrand}
	if len(resp.Skipped) != len(wantReasons) {
		t.Fatalf("expected %d skipped lines, got %+v", len(wantReasons), resp.Skipped)
	}
	for i, reason := range wantReasons {
		if resp.Skipped[i].Index != i || resp.Skipped[i].Reason != reason {
			t.Fatalf("skipped[%d] = %+v, want index %d reason %q", i, resp.Skipped[i], i, reason)
		}
	}
	if got := brandOf(t, repo, "Rice 5kg", "Setra"); got.Quantity != 100 {
		t.Fatalf("skipped line changed stock: %+v", got)
	}
}

func TestOrderValidation(t *testing.T) {
	svc, _ := newTestService(t, Dependencies{})

	var invalid *ValidationError
	_, err := svc.CreateInStoreOrder(as(cashierActor), domain.InStoreOrderRequest{Channel: domain.ChannelOffline})
	if !errors.As(err, &invalid) || invalid.Field != "items" {
		t.Fatalf("expected items validation error, got %v", err)
	}

	_, err = svc.CreateInStoreOrder(as(cashierActor), domain.InStoreOrderRequest{
		Items: []domain.OrderLine{{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: 1}},
	})
	if !errors.As(err, &invalid) || invalid.Field != "channel" {
		t.Fatalf("expected channel validation error, got %v", err)
	}

	_, err = svc.CreateInStoreOrder(as(customerActor), domain.InStoreOrderRequest{
		Channel: domain.ChannelOffline,
		Items:   []domain.OrderLine{{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: 1}},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected customers to be refused at the counter, got %v", err)
	}
}

func TestNegotiatedWebOrderScalesPricesNotStock(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})

	if _, err := svc.CreateItem(as(ownerActor), domain.ItemCreateRequest{
		Name:     "Tea",
		Category: "beverage",
		Brands:   []domain.BrandInput{{Name: "X", PriceCents: 100, Quantity: 50}},
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	neg, err := svc.SubmitNegotiation(as(customerActor), domain.NegotiationRequest{
		Customer:             domain.Customer{Name: "Ana", Email: "someone-else@example.com"},
		Items:                []domain.NegotiationItemInput{{Name: "Tea", Brand: "X", Quantity: 2, TotalCents: 200}},
		OriginalTotalCents:   200,
		NegotiatedTotalCents: 160,
	})
	if err != nil {
		t.Fatalf("submit negotiation: %v", err)
	}
	if neg.Status != domain.NegotiationWaiting || neg.Customer.Email != customerActor.Email {
		t.Fatalf("unexpected negotiation %+v", neg)
	}
	if neg.Items[0].UnitPriceCents != 100 {
		t.Fatalf("expected unit price 100, got %d", neg.Items[0].UnitPriceCents)
	}

	order := domain.OnlineOrderRequest{
		Name:          "Ana",
		Address:       "Jl. Mawar 1",
		NegotiationID: neg.ID,
		SubtotalCents: 160,
		TotalCents:    160,
		Items:         []domain.OrderLine{{Name: "Tea", Brand: "X", Quantity: 2}},
	}
	var invalid *ValidationError
	if _, err := svc.CreateOnlineOrder(as(customerActor), order); !errors.As(err, &invalid) {
		t.Fatalf("expected waiting negotiation to be refused, got %v", err)
	}

	if _, err := svc.DecideNegotiation(as(ownerActor), neg.ID, domain.NegotiationDecisionRequest{Accept: true}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	resp, err := svc.CreateOnlineOrder(as(customerActor), order)
	if err != nil {
		t.Fatalf("online order: %v", err)
	}
	if !resp.NegotiationApplied || resp.NegotiationRatio != 0.8 || resp.Channel != domain.ChannelOnline {
		t.Fatalf("unexpected response %+v", resp)
	}

	sales, err := repo.ListSales(context.Background(), domain.SalesFilter{ItemName: "Tea"})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || sales[0].UnitPriceCents != 80 || sales[0].TotalPriceCents != 160 || sales[0].QuantitySold != 2 {
		t.Fatalf("expected scaled sale 80/160 x2, got %+v", sales)
	}
	if sales[0].BuyerEmail != customerActor.Email {
		t.Fatalf("expected buyer email from the token, got %q", sales[0].BuyerEmail)
	}
	if got := brandOf(t, repo, "Tea", "X"); got.Quantity != 48 || got.OnlineStock != 38 || got.OfflineStock != 10 {
		t.Fatalf("expected stock 48/38/10, got %+v", got)
	}
}

func TestWebOrderWithoutNegotiationUsesSubtotal(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})

	resp, err := svc.CreateOnlineOrder(as(customerActor), domain.OnlineOrderRequest{
		Name:          "Ana",
		SubtotalCents: 3800,
		Items:         []domain.OrderLine{{Name: "Cooking Oil 2L", Brand: "Bimoli", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("online order: %v", err)
	}
	if !resp.NegotiationApplied || resp.NegotiationRatio != 0.5 {
		t.Fatalf("expected ratio 0.5, got %+v", resp)
	}
	sales, _ := repo.ListSales(context.Background(), domain.SalesFilter{})
	if len(sales) != 1 || sales[0].UnitPriceCents != 1900 || sales[0].TotalPriceCents != 3800 {
		t.Fatalf("unexpected sale %+v", sales)
	}

	resp, err = svc.CreateOnlineOrder(as(customerActor), domain.OnlineOrderRequest{
		Items: []domain.OrderLine{{Name: "Cooking Oil 2L", Brand: "Sania", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("online order without subtotal: %v", err)
	}
	if resp.NegotiationApplied || resp.NegotiationRatio != 1 {
		t.Fatalf("expected pass-through prices, got %+v", resp)
	}
	orders, err := svc.ListOnlineOrders(as(ownerActor), 0)
	if err != nil {
		t.Fatalf("list online orders: %v", err)
	}
	if len(orders) != 2 || orders[0].Number != 2 || orders[0].CustomerName != "Anonymous" {
		t.Fatalf("expected newest web order first, got %+v", orders)
	}
}

func TestRejectPolicySkipsOversell(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{Ledger: stock.NewLedger(stock.OversellReject, 0.8)})
	before := brandOf(t, repo, "Sugar 1kg", "Gulaku")

	resp, err := svc.CreateInStoreOrder(as(cashierActor), domain.InStoreOrderRequest{
		Channel: domain.ChannelOffline,
		Items:   []domain.OrderLine{{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: before.OfflineStock + 1}},
	})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if resp.SalesCount != 0 || len(resp.Skipped) != 1 || resp.Skipped[0].Reason != skipInsufficient {
		t.Fatalf("expected the line to be skipped as insufficient, got %+v", resp)
	}
	if got := brandOf(t, repo, "Sugar 1kg", "Gulaku"); got != before {
		t.Fatalf("rejected oversell changed stock: %+v -> %+v", before, got)
	}
}

func TestConcurrentOrdersDoNotLoseUpdates(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})
	before := brandOf(t, repo, "Instant Coffee", "Kapal Api")

	const buyers = 20
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOnlineOrder(as(customerActor), domain.OnlineOrderRequest{
				Items: []domain.OrderLine{{Name: "Instant Coffee", Brand: "Kapal Api", Quantity: 1}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("order failed: %v", err)
		}
	}

	got := brandOf(t, repo, "Instant Coffee", "Kapal Api")
	if got.Quantity != before.Quantity-buyers || got.OnlineStock != before.OnlineStock-buyers || got.OfflineStock != before.OfflineStock {
		t.Fatalf("lost update: before %+v after %+v", before, got)
	}
}

func TestOrderPublishesSalesAndInvalidatesReports(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	reports := &countingCache{}
	svc, _ := newTestService(t, Dependencies{Events: publisher, Reports: reports})

	dash, err := svc.Dashboard(as(ownerActor))
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.TotalRevenueCents != 0 || dash.TopItemOnline != "N/A" {
		t.Fatalf("expected empty dashboard, got %+v", dash)
	}
	if _, err := svc.Dashboard(as(ownerActor)); err != nil {
		t.Fatalf("cached dashboard: %v", err)
	}
	if reports.hits != 1 {
		t.Fatalf("expected the second dashboard to hit the cache, got %d hits", reports.hits)
	}

	resp, err := svc.CreateInStoreOrder(as(cashierActor), domain.InStoreOrderRequest{
		Channel: domain.ChannelOnline,
		Items: []domain.OrderLine{
			{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: 1},
			{Name: "Instant Coffee", Brand: "Nescafe", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("order should survive a publish failure: %v", err)
	}
	if len(publisher.orders) != 1 || publisher.orders[0] != resp.OrderID || publisher.sales != 2 {
		t.Fatalf("unexpected published events %+v", publisher)
	}
	if reports.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", reports.invalidated)
	}

	dash, err = svc.Dashboard(as(ownerActor))
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.TotalRevenueCents != 1700+3*1500 || dash.TopItemOnline != "Instant Coffee" || dash.TopBrandOnline != "Nescafe" {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
}

func TestItemEditsRequireOwnerAndAreAudited(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})
	ctx := as(ownerActor)

	if _, err := svc.CreateItem(as(cashierActor), domain.ItemCreateRequest{Name: "Salt"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier create to be forbidden, got %v", err)
	}

	rice, err := repo.GetItemByName(context.Background(), "Rice 5kg")
	if err != nil {
		t.Fatalf("get rice: %v", err)
	}

	updated, err := svc.EditRatio(ctx, rice.ID, domain.EditRatioRequest{NewRatio: 0.5})
	if err != nil {
		t.Fatalf("edit ratio: %v", err)
	}
	if b := updated.Brands["Setra"]; b.OnlineStock != 50 || b.OfflineStock != 50 {
		t.Fatalf("expected 50/50 split, got %+v", b)
	}
	if b := updated.Brands["Pandan Wangi"]; b.OnlineStock != 30 || b.OfflineStock != 30 {
		t.Fatalf("expected every brand recomputed, got %+v", b)
	}

	var invalid *stock.ValidationError
	if _, err := svc.EditRatio(ctx, rice.ID, domain.EditRatioRequest{NewRatio: 1.5}); !errors.As(err, &invalid) {
		t.Fatalf("expected ratio validation error, got %v", err)
	}

	online := 5
	updated, err = svc.EditLimits(ctx, rice.ID, domain.EditLimitRequest{Brand: "Setra", OnlineLimit: &online})
	if err != nil {
		t.Fatalf("edit limits: %v", err)
	}
	if b := updated.Brands["Setra"]; b.OnlineLimit != 5 || b.OfflineLimit != 10 || b.OnlineStock != 50 {
		t.Fatalf("unexpected limits %+v", b)
	}

	updated, err = svc.EditStock(ctx, rice.ID, domain.EditStockRequest{Brand: "Setra", NewStock: 11})
	if err != nil {
		t.Fatalf("edit stock: %v", err)
	}
	if b := updated.Brands["Setra"]; b.Quantity != 11 || b.OnlineStock != 5 || b.OfflineStock != 6 {
		t.Fatalf("unexpected stock %+v", b)
	}

	updated, err = svc.RemoveBrand(ctx, rice.ID, "Pandan Wangi")
	if err != nil {
		t.Fatalf("remove brand: %v", err)
	}
	if _, ok := updated.Brands["Pandan Wangi"]; ok {
		t.Fatalf("brand still present after removal")
	}
	if _, err := svc.RemoveBrand(ctx, rice.ID, "Pandan Wangi"); !errors.As(err, &invalid) {
		t.Fatalf("expected unknown brand validation error, got %v", err)
	}

	if _, err := svc.EditStock(ctx, "itm_missing", domain.EditStockRequest{Brand: "Setra", NewStock: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour), 50)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 4 {
		t.Fatalf("expected 4 audit entries, got %d: %+v", len(logs), logs)
	}
	for _, entry := range logs {
		if entry.ActorEmail != ownerActor.Email || entry.EntityID != rice.ID {
			t.Fatalf("unexpected audit entry %+v", entry)
		}
	}
}

func TestUpdateItemNeedsBrandForPriceOrQuantity(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})
	ctx := as(ownerActor)
	oil, _ := repo.GetItemByName(context.Background(), "Cooking Oil 2L")

	price := int64(4000)
	var invalid *ValidationError
	if _, err := svc.UpdateItem(ctx, oil.ID, domain.ItemUpdateRequest{PriceCents: &price}); !errors.As(err, &invalid) {
		t.Fatalf("expected brand validation error, got %v", err)
	}

	name := "Cooking Oil 2 L"
	qty := 10
	updated, err := svc.UpdateItem(ctx, oil.ID, domain.ItemUpdateRequest{Name: &name, Brand: "Bimoli", PriceCents: &price, Quantity: &qty})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	b := updated.Brands["Bimoli"]
	if updated.Name != name || b.PriceCents != 4000 || b.Quantity != 10 || b.OnlineStock != 8 || b.OfflineStock != 2 {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, err := repo.GetItemByName(context.Background(), name); err != nil {
		t.Fatalf("expected lookup by new name: %v", err)
	}
}

func TestDecideNegotiationIsFinal(t *testing.T) {
	svc, _ := newTestService(t, Dependencies{})

	neg, err := svc.SubmitNegotiation(as(customerActor), domain.NegotiationRequest{
		Items:                []domain.NegotiationItemInput{{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: 3, TotalCents: 5100}},
		OriginalTotalCents:   5100,
		NegotiatedTotalCents: 4500,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if neg.Customer.Name != "Ana" {
		t.Fatalf("expected name from the token, got %+v", neg.Customer)
	}

	if _, err := svc.DecideNegotiation(as(cashierActor), neg.ID, domain.NegotiationDecisionRequest{Accept: true}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier decision to be forbidden, got %v", err)
	}
	decided, err := svc.DecideNegotiation(as(ownerActor), neg.ID, domain.NegotiationDecisionRequest{Accept: false})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if decided.Status != domain.NegotiationRejected || decided.DecidedAt == nil {
		t.Fatalf("unexpected decision %+v", decided)
	}
	if _, err := svc.DecideNegotiation(as(ownerActor), neg.ID, domain.NegotiationDecisionRequest{Accept: true}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on second decision, got %v", err)
	}
	if _, err := svc.DecideNegotiation(as(ownerActor), "neg_missing", domain.NegotiationDecisionRequest{Accept: true}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mine, err := svc.ListCustomerNegotiations(as(customerActor), "someone@else.com")
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].Status != domain.NegotiationRejected {
		t.Fatalf("expected own negotiation with its status, got %+v", mine)
	}

	notifications, err := svc.ListNotifications(as(ownerActor), 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].Title != "Negotiation Request from Ana" {
		t.Fatalf("expected negotiation notification, got %+v", notifications)
	}
	if err := svc.MarkNotificationRead(as(ownerActor), notifications[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
}

func TestCheckStockIsReadOnly(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})
	ctx := as(customerActor)

	resp, err := svc.CheckStock(ctx, domain.CheckStockRequest{ItemName: "Rice 5kg", Brand: "Setra", Quantity: 80})
	if err != nil {
		t.Fatalf("check stock: %v", err)
	}
	if !resp.Available || resp.OnlineStock != 80 {
		t.Fatalf("expected available, got %+v", resp)
	}

	resp, err = svc.CheckStock(ctx, domain.CheckStockRequest{ItemName: "Rice 5kg", Brand: "Pandan Wangi", Quantity: 50})
	if err != nil {
		t.Fatalf("check stock: %v", err)
	}
	if resp.Available || len(resp.Alternatives) != 1 || resp.Alternatives[0] != "Setra" {
		t.Fatalf("expected Setra as the alternative, got %+v", resp)
	}

	if got := brandOf(t, repo, "Rice 5kg", "Setra"); got.OnlineStock != 80 {
		t.Fatalf("check stock mutated stock: %+v", got)
	}

	if _, err := svc.CheckStock(ctx, domain.CheckStockRequest{ItemName: "Caviar", Brand: "X", Quantity: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var invalid *stock.ValidationError
	_, err = svc.CheckStock(ctx, domain.CheckStockRequest{ItemName: "Rice 5kg", Brand: "Nope", Quantity: 1})
	if !errors.As(err, &invalid) || invalid.Field != "brand" {
		t.Fatalf("expected unknown brand validation error, got %v", err)
	}
}

func TestTopSalesAndBrandComparison(t *testing.T) {
	svc, _ := newTestService(t, Dependencies{})

	for _, line := range []domain.OrderLine{
		{Name: "Instant Coffee", Brand: "Kapal Api", Quantity: 4},
		{Name: "Instant Coffee", Brand: "Kapal Api", Quantity: 1},
		{Name: "Sugar 1kg", Brand: "Gulaku", Quantity: 2},
	} {
		if _, err := svc.CreateInStoreOrder(as(cashierActor), domain.InStoreOrderRequest{
			Channel: domain.ChannelOffline,
			Items:   []domain.OrderLine{line},
		}); err != nil {
			t.Fatalf("order: %v", err)
		}
	}

	top, err := svc.TopSales(as(ownerActor), domain.TopQuery{Type: "brands", Metric: "quantity", Limit: 1}, false)
	if err != nil {
		t.Fatalf("top sales: %v", err)
	}
	if len(top) != 1 || top[0].Key != "Kapal Api" || top[0].Quantity != 5 {
		t.Fatalf("unexpected top %+v", top)
	}

	all, err := svc.TopSales(as(ownerActor), domain.TopQuery{Type: "items", Metric: "revenue"}, true)
	if err != nil {
		t.Fatalf("top all: %v", err)
	}
	if len(all) != 2 || all[0].Key != "Instant Coffee" || all[0].LastSold.IsZero() || len(all[0].Channels) != 1 {
		t.Fatalf("unexpected detailed totals %+v", all)
	}

	var invalid *ValidationError
	if _, err := svc.TopSales(as(ownerActor), domain.TopQuery{Type: "stores"}, false); !errors.As(err, &invalid) {
		t.Fatalf("expected type validation error, got %v", err)
	}

	cmp, err := svc.CompareBrands(as(customerActor), "Instant Coffee")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(cmp.Brands) != 2 || cmp.Brands[0].Brand != "Kapal Api" || cmp.Brands[0].TotalQuantity != 5 || cmp.Brands[1].TotalQuantity != 0 {
		t.Fatalf("unexpected comparison %+v", cmp)
	}

	analytics, err := svc.SalesAnalytics(as(ownerActor), 7, domain.ChannelOffline)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.RangeDays != 7 || len(analytics.KPI) != 1 || analytics.KPI[0].TotalOrders != 3 {
		t.Fatalf("unexpected analytics %+v", analytics)
	}
}

func TestRecalculateAllFixesDriftedItems(t *testing.T) {
	svc, repo := newTestService(t, Dependencies{})

	sugar, err := repo.GetItemByName(context.Background(), "Sugar 1kg")
	if err != nil {
		t.Fatalf("get sugar: %v", err)
	}
	drifted := sugar.Clone()
	entry := drifted.Brands["Gulaku"]
	entry.OnlineStock = 0
	entry.OfflineStock = entry.Quantity
	drifted.Brands["Gulaku"] = entry
	if _, err := repo.SaveItem(context.Background(), drifted); err != nil {
		t.Fatalf("save drifted: %v", err)
	}

	processed, updated, err := svc.RecalculateAll(context.Background())
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if processed != 4 || updated != 1 {
		t.Fatalf("expected 4 processed and 1 updated, got %d/%d", processed, updated)
	}
	if got := brandOf(t, repo, "Sugar 1kg", "Gulaku"); got.OnlineStock != 9 || got.OfflineStock != 3 {
		t.Fatalf("expected 9/3 after recompute, got %+v", got)
	}

	_, updated, err = svc.RecalculateAll(context.Background())
	if err != nil || updated != 0 {
		t.Fatalf("expected a second pass to be a no-op, got %d, %v", updated, err)
	}
}
