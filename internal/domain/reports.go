package domain

import "time"

type Dashboard struct {
	TotalRevenueCents int64  `json:"total_revenue_cents"`
	TopItemOnline     string `json:"top_item_online"`
	TopBrandOnline    string `json:"top_brand_online"`
	TopItemOffline    string `json:"top_item_offline"`
	TopBrandOffline   string `json:"top_brand_offline"`
}

type ChannelKPI struct {
	Channel           Channel `json:"channel"`
	TotalRevenueCents int64   `json:"total_revenue_cents"`
	TotalOrders       int     `json:"total_orders"`
	UniqueBuyers      int     `json:"unique_buyers"`
}

type DailyRevenue struct {
	Date         string  `json:"date"`
	Channel      Channel `json:"channel"`
	RevenueCents int64   `json:"revenue_cents"`
}

type GroupTotal struct {
	Key          string    `json:"key"`
	Quantity     int       `json:"total_quantity"`
	RevenueCents int64     `json:"revenue_cents"`
	LastSold     time.Time `json:"last_sold,omitempty"`
	Channels     []Channel `json:"channels,omitempty"`
}

type SalesAnalytics struct {
	RangeDays           int            `json:"range_days"`
	KPI                 []ChannelKPI   `json:"kpi"`
	Daily               []DailyRevenue `json:"daily"`
	TopItemsByRevenue   []GroupTotal   `json:"top_items_by_revenue"`
	TopBrandsByRevenue  []GroupTotal   `json:"top_brands_by_revenue"`
	TopItemsByQuantity  []GroupTotal   `json:"top_items_by_quantity"`
	TopBrandsByQuantity []GroupTotal   `json:"top_brands_by_quantity"`
}

type TopQuery struct {
	Type      string  `json:"type"`
	Metric    string  `json:"metric"`
	Limit     int     `json:"limit"`
	RangeDays int     `json:"range_days"`
	Channel   Channel `json:"channel,omitempty"`
}

type BrandComparison struct {
	Brand             string `json:"brand"`
	TotalQuantity     int    `json:"total_quantity"`
	TotalRevenueCents int64  `json:"total_revenue_cents"`
}

type BrandComparisonResponse struct {
	ItemName string            `json:"item_name"`
	Brands   []BrandComparison `json:"brands"`
}
