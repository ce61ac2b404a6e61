package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/stock"
)

func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleCashier); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx)
}

func (s *Service) ListItemNames(ctx context.Context) ([]string, error) {
	if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleCashier, domain.RoleCustomer); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleCashier); err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.GetItem(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Item{}, err
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return domain.Item{}, err
	}

	item, err := s.ledger.Build(req.Name, req.Category, req.StockRatio, req.Brands)
	if err != nil {
		return domain.Item{}, err
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}

	s.logAudit(ctx, "item_create", "item", created.ID,
		fmt.Sprintf("name=%s,ratio=%.2f,brands=%d", created.Name, created.StockRatio, len(created.Brands)))
	return *created, nil
}

// UpdateItem edits the descriptive fields and, when a brand is named, that
// brand's price and quantity. A quantity edit re-derives the whole split.
func (s *Service) UpdateItem(ctx context.Context, id string, req domain.ItemUpdateRequest) (domain.Item, error) {
	brand := strings.TrimSpace(req.Brand)
	if brand == "" && (req.PriceCents != nil || req.Quantity != nil) {
		if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
			return domain.Item{}, err
		}
		return domain.Item{}, &ValidationError{Field: "brand", Message: "is required to change price or quantity"}
	}

	return s.mutateItem(ctx, id, "item_update", func(item *domain.Item) (string, error) {
		changes := []string{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return "", &ValidationError{Field: "name", Message: "must not be empty"}
			}
			item.Name = name
			changes = append(changes, "name="+name)
		}
		if req.Category != nil {
			item.Category = strings.TrimSpace(*req.Category)
			changes = append(changes, "category="+item.Category)
		}
		if req.PriceCents != nil {
			if err := s.ledger.SetPrice(item, brand, *req.PriceCents); err != nil {
				return "", err
			}
			changes = append(changes, fmt.Sprintf("price[%s]=%d", brand, *req.PriceCents))
		}
		if req.Quantity != nil {
			if err := s.ledger.SetQuantity(item, brand, *req.Quantity); err != nil {
				return "", err
			}
			changes = append(changes, fmt.Sprintf("quantity[%s]=%d", brand, *req.Quantity))
		}
		if len(changes) == 0 {
			return "", &ValidationError{Field: "body", Message: "no changes requested"}
		}
		return strings.Join(changes, ","), nil
	})
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	err := s.withItemLock(ctx, id, func() error {
		return s.repo.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, "item_delete", "item", id, "")
	return nil
}

func (s *Service) AddBrand(ctx context.Context, id string, req domain.AddBrandRequest) (domain.Item, error) {
	return s.mutateItem(ctx, id, "brand_add", func(item *domain.Item) (string, error) {
		if err := s.ledger.AddBrand(item, req.Brand, req.PriceCents, req.Stock); err != nil {
			return "", err
		}
		return fmt.Sprintf("brand=%s,price=%d,stock=%d", strings.TrimSpace(req.Brand), req.PriceCents, req.Stock), nil
	})
}

// RemoveBrand drops every per-brand value of the item at once.
func (s *Service) RemoveBrand(ctx context.Context, id string, brand string) (domain.Item, error) {
	brand = strings.TrimSpace(brand)
	return s.mutateItem(ctx, id, "brand_delete", func(item *domain.Item) (string, error) {
		if err := s.ledger.RemoveBrand(item, brand); err != nil {
			return "", err
		}
		return "brand=" + brand, nil
	})
}

func (s *Service) EditStock(ctx context.Context, id string, req domain.EditStockRequest) (domain.Item, error) {
	brand := strings.TrimSpace(req.Brand)
	return s.mutateItem(ctx, id, "stock_edit", func(item *domain.Item) (string, error) {
		if err := s.ledger.SetQuantity(item, brand, req.NewStock); err != nil {
			return "", err
		}
		return fmt.Sprintf("brand=%s,quantity=%d", brand, req.NewStock), nil
	})
}

func (s *Service) EditRatio(ctx context.Context, id string, req domain.EditRatioRequest) (domain.Item, error) {
	return s.mutateItem(ctx, id, "ratio_edit", func(item *domain.Item) (string, error) {
		if err := s.ledger.SetRatio(item, req.NewRatio); err != nil {
			return "", err
		}
		return fmt.Sprintf("ratio=%.4f", req.NewRatio), nil
	})
}

func (s *Service) EditLimits(ctx context.Context, id string, req domain.EditLimitRequest) (domain.Item, error) {
	brand := strings.TrimSpace(req.Brand)
	return s.mutateItem(ctx, id, "limit_edit", func(item *domain.Item) (string, error) {
		if req.OnlineLimit == nil && req.OfflineLimit == nil {
			return "", &ValidationError{Field: "limits", Message: "online_limit or offline_limit is required"}
		}
		if err := s.ledger.SetLimits(item, brand, req.OnlineLimit, req.OfflineLimit); err != nil {
			return "", err
		}
		entry := item.Brands[brand]
		return fmt.Sprintf("brand=%s,online_limit=%d,offline_limit=%d", brand, entry.OnlineLimit, entry.OfflineLimit), nil
	})
}

// mutateItem runs one owner edit against a fresh copy of the item while the
// item lock is held, then stores the whole item and records the audit entry.
func (s *Service) mutateItem(ctx context.Context, id string, action string, apply func(item *domain.Item) (string, error)) (domain.Item, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return domain.Item{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Item{}, &ValidationError{Field: "id", Message: "is required"}
	}

	var (
		saved  *domain.Item
		detail string
	)
	err := s.withItemLock(ctx, id, func() error {
		existing, err := s.repo.GetItem(ctx, id)
		if err != nil {
			return err
		}
		item := existing.Clone()
		detail, err = apply(&item)
		if err != nil {
			return err
		}
		saved, err = s.repo.SaveItem(ctx, item)
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.logAudit(ctx, action, "item", saved.ID, detail)
	return *saved, nil
}

// CheckStock reports whether the online stock of a brand covers quantity and
// which other brands of the item could. Nothing is reserved.
func (s *Service) CheckStock(ctx context.Context, req domain.CheckStockRequest) (domain.CheckStockResponse, error) {
	if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleCashier, domain.RoleCustomer); err != nil {
		return domain.CheckStockResponse{}, err
	}
	name := strings.TrimSpace(req.ItemName)
	brand := strings.TrimSpace(req.Brand)
	if name == "" || brand == "" || req.Quantity <= 0 {
		return domain.CheckStockResponse{}, &ValidationError{Field: "body", Message: "item_name, brand and a positive quantity are required"}
	}

	item, err := s.repo.GetItemByName(ctx, name)
	if err != nil {
		return domain.CheckStockResponse{}, err
	}

	entry, ok := item.Brands[brand]
	if !ok {
		return domain.CheckStockResponse{}, &stock.ValidationError{Field: "brand", Message: fmt.Sprintf("unknown brand %q", brand)}
	}
	available := entry.OnlineStock
	if available >= req.Quantity {
		return domain.CheckStockResponse{
			Available:   true,
			OnlineStock: available,
			Message:     "stock available",
		}, nil
	}

	alternatives := []string{}
	for _, other := range item.BrandNames() {
		if other != brand && item.Brands[other].OnlineStock >= req.Quantity {
			alternatives = append(alternatives, other)
		}
	}
	return domain.CheckStockResponse{
		Available:    false,
		OnlineStock:  available,
		Message:      "insufficient stock for selected brand",
		Alternatives: alternatives,
	}, nil
}

// RecalculateAll re-derives the split of every item and saves those whose
// stored values drift from the calculator. It returns processed and updated
// counts.
func (s *Service) RecalculateAll(ctx context.Context) (int, int, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return 0, 0, err
	}

	updated := 0
	for _, listed := range items {
		err := s.withItemLock(ctx, listed.ID, func() error {
			current, err := s.repo.GetItem(ctx, listed.ID)
			if err != nil {
				return err
			}
			stale, err := s.ledger.NeedsRecompute(*current)
			if err != nil || !stale {
				return err
			}
			item := current.Clone()
			if err := s.ledger.Recompute(&item); err != nil {
				return err
			}
			if _, err := s.repo.SaveItem(ctx, item); err != nil {
				return err
			}
			updated++
			return nil
		})
		if err != nil {
			return len(items), updated, fmt.Errorf("recalculate %s: %w", listed.Name, err)
		}
	}

	if updated > 0 {
		s.logAudit(ctx, "stock_recalculate", "item", "*", fmt.Sprintf("processed=%d,updated=%d", len(items), updated))
	}
	return len(items), updated, nil
}
