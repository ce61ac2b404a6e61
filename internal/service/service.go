package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"omnistock/backend/internal/alert"
	"omnistock/backend/internal/cache"
	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/events"
	"omnistock/backend/internal/lock"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Dependencies are the collaborators of a Service. Zero values fall back to
// in-process implementations.
type Dependencies struct {
	Ledger    *stock.Ledger
	Locker    lock.Locker
	Alerts    *alert.Dispatcher
	Events    events.Publisher
	Reports   cache.ReportCache
	ReportTTL time.Duration
	Logger    *zap.Logger

	// PublishTimeout bounds how long an order waits on the event publisher.
	PublishTimeout time.Duration
}

type Service struct {
	repo      store.Repository
	ledger    *stock.Ledger
	locker    lock.Locker
	alerts    *alert.Dispatcher
	events    events.Publisher
	reports   cache.ReportCache
	reportTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

func New(repo store.Repository, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Ledger == nil {
		deps.Ledger = stock.NewLedger(stock.OversellClamp, domain.DefaultStockRatio)
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	if deps.Alerts == nil {
		deps.Alerts = alert.NewDispatcher(repo, nil, "", deps.Logger)
	}
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if deps.Reports == nil {
		deps.Reports = cache.NoopReportCache{}
	}
	if deps.ReportTTL <= 0 {
		deps.ReportTTL = 30 * time.Second
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = 3 * time.Second
	}

	return &Service{
		repo:      repo,
		ledger:    deps.Ledger,
		locker:    deps.Locker,
		alerts:    deps.Alerts,
		events:    deps.Events,
		reports:   deps.Reports,
		reportTTL: deps.ReportTTL,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },

		publishTimeout: deps.PublishTimeout,
	}
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: authentication required", ErrForbidden)
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%w: %s role required", ErrForbidden, strings.Join(roles, " or "))
}

// withItemLock serializes read-modify-write cycles on one item across
// requests (and across processes when the locker is Redis backed).
func (s *Service) withItemLock(ctx context.Context, itemID string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, itemID)
	if err != nil {
		return fmt.Errorf("lock item %s: %w", itemID, err)
	}
	defer release()
	return fn()
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Email: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("aud"),
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		s.logger.Warn("write audit log failed",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, &ValidationError{Field: "to", Message: "must be after from"}
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListNotifications(ctx, limit)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	return s.repo.MarkNotificationRead(ctx, id)
}

// invalidateReports drops cached analytics after sales change. A failure only
// means readers see stale figures until the TTL passes.
func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.reports.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate report cache failed", zap.Error(err))
	}
}
