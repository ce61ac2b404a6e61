package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"omnistock/backend/internal/analytics"
	"omnistock/backend/internal/domain"
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 365
	maxTopLimit      = 100
)

// cachedReport serves key from the report cache or computes and stores it.
// Cache errors degrade to a direct computation.
func cachedReport[T any](ctx context.Context, s *Service, key string, compute func() (T, error)) (T, error) {
	var out T
	hit, err := s.reports.Get(ctx, key, &out)
	if err != nil {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return out, nil
	}

	out, err = compute()
	if err != nil {
		return out, err
	}
	if err := s.reports.Set(ctx, key, out, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return domain.Dashboard{}, err
	}
	return cachedReport(ctx, s, "dashboard", func() (domain.Dashboard, error) {
		sales, err := s.repo.ListSales(ctx, domain.SalesFilter{})
		if err != nil {
			return domain.Dashboard{}, err
		}
		return analytics.Dashboard(sales), nil
	})
}

func (s *Service) SalesAnalytics(ctx context.Context, rangeDays int, channel domain.Channel) (domain.SalesAnalytics, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return domain.SalesAnalytics{}, err
	}
	rangeDays = clampRange(rangeDays)
	if err := validateChannelFilter(channel); err != nil {
		return domain.SalesAnalytics{}, err
	}

	key := fmt.Sprintf("analytics:%d:%s", rangeDays, channelKey(channel))
	return cachedReport(ctx, s, key, func() (domain.SalesAnalytics, error) {
		sales, err := s.repo.ListSales(ctx, domain.SalesFilter{
			From:    analytics.Since(s.now(), rangeDays),
			Channel: channel,
		})
		if err != nil {
			return domain.SalesAnalytics{}, err
		}
		return analytics.Sales(sales, rangeDays), nil
	})
}

// TopSales ranks items or brands by quantity or revenue. With detail set every
// group is returned with last sold time and channels, ignoring the limit.
func (s *Service) TopSales(ctx context.Context, q domain.TopQuery, detail bool) ([]domain.GroupTotal, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return nil, err
	}

	q.Type = strings.ToLower(strings.TrimSpace(q.Type))
	if q.Type == "" {
		q.Type = analytics.GroupItems
	}
	if q.Type != analytics.GroupItems && q.Type != analytics.GroupBrands {
		return nil, &ValidationError{Field: "type", Message: "must be items or brands"}
	}
	q.Metric = strings.ToLower(strings.TrimSpace(q.Metric))
	if q.Metric == "" {
		q.Metric = analytics.MetricQuantity
	}
	if q.Metric != analytics.MetricQuantity && q.Metric != analytics.MetricRevenue {
		return nil, &ValidationError{Field: "metric", Message: "must be quantity or revenue"}
	}
	if err := validateChannelFilter(q.Channel); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	if q.Limit > maxTopLimit {
		q.Limit = maxTopLimit
	}

	filter := domain.SalesFilter{Channel: q.Channel}
	if q.RangeDays > 0 {
		q.RangeDays = clampRange(q.RangeDays)
		filter.From = analytics.Since(s.now(), q.RangeDays)
	}

	kind := "top"
	if detail {
		kind = "top-all"
	}
	key := fmt.Sprintf("%s:%s:%s:%d:%d:%s", kind, q.Type, q.Metric, q.Limit, q.RangeDays, channelKey(q.Channel))
	return cachedReport(ctx, s, key, func() ([]domain.GroupTotal, error) {
		sales, err := s.repo.ListSales(ctx, filter)
		if err != nil {
			return nil, err
		}
		if detail {
			return analytics.Group(sales, q.Type, q.Metric), nil
		}
		return analytics.Top(sales, q.Type, q.Metric, q.Limit), nil
	})
}

// CompareBrands totals every brand of an item, including unsold ones.
func (s *Service) CompareBrands(ctx context.Context, itemName string) (domain.BrandComparisonResponse, error) {
	if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleCashier, domain.RoleCustomer); err != nil {
		return domain.BrandComparisonResponse{}, err
	}
	itemName = strings.TrimSpace(itemName)
	if itemName == "" {
		return domain.BrandComparisonResponse{}, &ValidationError{Field: "item_name", Message: "is required"}
	}

	item, err := s.repo.GetItemByName(ctx, itemName)
	if err != nil {
		return domain.BrandComparisonResponse{}, err
	}
	sales, err := s.repo.ListSales(ctx, domain.SalesFilter{ItemName: item.Name})
	if err != nil {
		return domain.BrandComparisonResponse{}, err
	}
	return analytics.CompareBrands(*item, sales), nil
}

func clampRange(days int) int {
	if days <= 0 {
		return defaultRangeDays
	}
	if days > maxRangeDays {
		return maxRangeDays
	}
	return days
}

func validateChannelFilter(channel domain.Channel) error {
	if channel == "" || channel.Valid() {
		return nil
	}
	return &ValidationError{Field: "channel", Message: "must be online, offline or empty"}
}

func channelKey(channel domain.Channel) string {
	if channel == "" {
		return "all"
	}
	return string(channel)
}
