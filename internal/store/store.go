package store

import (
	"context"
	"errors"
	"time"

	"omnistock/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

type Repository interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	GetItemByName(ctx context.Context, name string) (*domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	// SaveItem replaces the item row and its full brand set.
	SaveItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	// SaveBrandStock writes a single brand in place, leaving the others alone.
	SaveBrandStock(ctx context.Context, itemID string, brand string, stock domain.BrandStock) error
	DeleteItem(ctx context.Context, id string) error

	// CreateOrder assigns the next number within the order's source.
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context, source string, limit int) ([]domain.Order, error)
	InsertSales(ctx context.Context, sales []domain.Sale) error
	ListSales(ctx context.Context, filter domain.SalesFilter) ([]domain.Sale, error)

	CreateNegotiation(ctx context.Context, negotiation domain.Negotiation) (*domain.Negotiation, error)
	GetNegotiation(ctx context.Context, id string) (*domain.Negotiation, error)
	// ListNegotiations returns newest first; an empty email lists everyone.
	ListNegotiations(ctx context.Context, customerEmail string) ([]domain.Negotiation, error)
	// DecideNegotiation moves a Waiting negotiation to status. Any other
	// current status yields ErrConflict.
	DecideNegotiation(ctx context.Context, id string, status domain.NegotiationStatus, at time.Time) (*domain.Negotiation, error)
	// RedeemNegotiation binds an Accepted negotiation to orderID. A negotiation
	// that is not Accepted or was already redeemed yields ErrConflict.
	RedeemNegotiation(ctx context.Context, id string, orderID string) error

	CreateNotification(ctx context.Context, notification domain.Notification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
