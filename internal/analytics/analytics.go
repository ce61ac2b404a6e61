// Package analytics rolls Sale records up into the owner's reports. All
// functions are pure; callers fetch the sales window from the store.
package analytics

import (
	"sort"
	"strings"
	"time"

	"omnistock/backend/internal/domain"
)

const (
	GroupItems  = "items"
	GroupBrands = "brands"

	MetricQuantity = "quantity"
	MetricRevenue  = "revenue"

	NotAvailable = "N/A"
	topN         = 5
)

// Since returns the start of a window that ends at now and spans days.
func Since(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

func Dashboard(sales []domain.Sale) domain.Dashboard {
	out := domain.Dashboard{
		TopItemOnline:   NotAvailable,
		TopBrandOnline:  NotAvailable,
		TopItemOffline:  NotAvailable,
		TopBrandOffline: NotAvailable,
	}
	online := make([]domain.Sale, 0, len(sales))
	offline := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		out.TotalRevenueCents += sale.TotalPriceCents
		if sale.Channel == domain.ChannelOnline {
			online = append(online, sale)
		} else {
			offline = append(offline, sale)
		}
	}

	if top := Group(online, GroupItems, MetricQuantity); len(top) > 0 {
		out.TopItemOnline = top[0].Key
	}
	if top := Group(online, GroupBrands, MetricQuantity); len(top) > 0 {
		out.TopBrandOnline = top[0].Key
	}
	if top := Group(offline, GroupItems, MetricQuantity); len(top) > 0 {
		out.TopItemOffline = top[0].Key
	}
	if top := Group(offline, GroupBrands, MetricQuantity); len(top) > 0 {
		out.TopBrandOffline = top[0].Key
	}
	return out
}

// Sales builds the analytics page payload for sales already restricted to the
// requested window and channel.
func Sales(sales []domain.Sale, rangeDays int) domain.SalesAnalytics {
	out := domain.SalesAnalytics{
		RangeDays:           rangeDays,
		KPI:                 kpis(sales),
		Daily:               daily(sales),
		TopItemsByRevenue:   limit(Group(sales, GroupItems, MetricRevenue), topN),
		TopBrandsByRevenue:  limit(Group(sales, GroupBrands, MetricRevenue), topN),
		TopItemsByQuantity:  limit(Group(sales, GroupItems, MetricQuantity), topN),
		TopBrandsByQuantity: limit(Group(sales, GroupBrands, MetricQuantity), topN),
	}
	return out
}

func kpis(sales []domain.Sale) []domain.ChannelKPI {
	byChannel := map[domain.Channel]*domain.ChannelKPI{}
	buyers := map[domain.Channel]map[string]struct{}{}
	for _, sale := range sales {
		kpi, ok := byChannel[sale.Channel]
		if !ok {
			kpi = &domain.ChannelKPI{Channel: sale.Channel}
			byChannel[sale.Channel] = kpi
			buyers[sale.Channel] = map[string]struct{}{}
		}
		kpi.TotalRevenueCents += sale.TotalPriceCents
		kpi.TotalOrders++
		if email := strings.ToLower(strings.TrimSpace(sale.BuyerEmail)); email != "" {
			buyers[sale.Channel][email] = struct{}{}
		}
	}

	out := make([]domain.ChannelKPI, 0, len(byChannel))
	for channel, kpi := range byChannel {
		kpi.UniqueBuyers = len(buyers[channel])
		out = append(out, *kpi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

func daily(sales []domain.Sale) []domain.DailyRevenue {
	type key struct {
		date    string
		channel domain.Channel
	}
	totals := map[key]int64{}
	for _, sale := range sales {
		k := key{date: sale.CreatedAt.UTC().Format("2006-01-02"), channel: sale.Channel}
		totals[k] += sale.TotalPriceCents
	}

	out := make([]domain.DailyRevenue, 0, len(totals))
	for k, revenue := range totals {
		out = append(out, domain.DailyRevenue{Date: k.date, Channel: k.channel, RevenueCents: revenue})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// Group totals sales by item name or brand and orders the groups by metric,
// largest first. Ties fall back to the key so output is stable. Every group
// carries its last sale time and the channels it sold on.
func Group(sales []domain.Sale, groupBy string, metric string) []domain.GroupTotal {
	groups := map[string]*domain.GroupTotal{}
	channels := map[string]map[domain.Channel]struct{}{}
	for _, sale := range sales {
		k := sale.ItemName
		if groupBy == GroupBrands {
			k = sale.Brand
		}
		g, ok := groups[k]
		if !ok {
			g = &domain.GroupTotal{Key: k}
			groups[k] = g
			channels[k] = map[domain.Channel]struct{}{}
		}
		g.Quantity += sale.QuantitySold
		g.RevenueCents += sale.TotalPriceCents
		if sale.CreatedAt.After(g.LastSold) {
			g.LastSold = sale.CreatedAt
		}
		channels[k][sale.Channel] = struct{}{}
	}

	out := make([]domain.GroupTotal, 0, len(groups))
	for k, g := range groups {
		for channel := range channels[k] {
			g.Channels = append(g.Channels, channel)
		}
		sort.Slice(g.Channels, func(i, j int) bool { return g.Channels[i] < g.Channels[j] })
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if metric == MetricRevenue {
			if a.RevenueCents != b.RevenueCents {
				return a.RevenueCents > b.RevenueCents
			}
		} else if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Key < b.Key
	})
	return out
}

// Top is Group trimmed to n entries without the last-sold and channel detail.
func Top(sales []domain.Sale, groupBy string, metric string, n int) []domain.GroupTotal {
	if n <= 0 {
		n = topN
	}
	out := limit(Group(sales, groupBy, metric), n)
	for i := range out {
		out[i].LastSold = time.Time{}
		out[i].Channels = nil
	}
	return out
}

// CompareBrands lists every brand currently on the item, with zero totals for
// brands that have not sold.
func CompareBrands(item domain.Item, sales []domain.Sale) domain.BrandComparisonResponse {
	totals := map[string]*domain.BrandComparison{}
	for _, sale := range sales {
		if sale.ItemName != item.Name {
			continue
		}
		t, ok := totals[sale.Brand]
		if !ok {
			t = &domain.BrandComparison{Brand: sale.Brand}
			totals[sale.Brand] = t
		}
		t.TotalQuantity += sale.QuantitySold
		t.TotalRevenueCents += sale.TotalPriceCents
	}

	names := item.BrandNames()
	out := domain.BrandComparisonResponse{ItemName: item.Name, Brands: make([]domain.BrandComparison, 0, len(names))}
	for _, name := range names {
		if t, ok := totals[name]; ok {
			out.Brands = append(out.Brands, *t)
			continue
		}
		out.Brands = append(out.Brands, domain.BrandComparison{Brand: name})
	}
	return out
}

func limit(groups []domain.GroupTotal, n int) []domain.GroupTotal {
	if len(groups) > n {
		return groups[:n]
	}
	return groups
}
