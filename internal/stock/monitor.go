package stock

import "omnistock/backend/internal/domain"

// Alert is a low-stock signal for one side of one brand.
type Alert struct {
	ItemID   string
	ItemName string
	Brand    string
	Channel  domain.Channel
	Stock    int
	Limit    int
}

// CheckLimits compares both channel stocks of brand against their limits.
// Each side is judged on its own, so a single sale can raise two alerts.
func CheckLimits(item domain.Item, brand string) []Alert {
	entry, ok := item.Brands[brand]
	if !ok {
		return nil
	}

	alerts := make([]Alert, 0, 2)
	if entry.OfflineStock < entry.OfflineLimit {
		alerts = append(alerts, Alert{
			ItemID:   item.ID,
			ItemName: item.Name,
			Brand:    brand,
			Channel:  domain.ChannelOffline,
			Stock:    entry.OfflineStock,
			Limit:    entry.OfflineLimit,
		})
	}
	if entry.OnlineStock < entry.OnlineLimit {
		alerts = append(alerts, Alert{
			ItemID:   item.ID,
			ItemName: item.Name,
			Brand:    brand,
			Channel:  domain.ChannelOnline,
			Stock:    entry.OnlineStock,
			Limit:    entry.OnlineLimit,
		})
	}
	return alerts
}
