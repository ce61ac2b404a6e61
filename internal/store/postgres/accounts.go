package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

type notificationRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	ItemName  string    `db:"item_name"`
	Brand     string    `db:"brand"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

type userRow struct {
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	Phone        string    `db:"phone"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

type auditRow struct {
	ID         string    `db:"id"`
	ActorEmail string    `db:"actor_email"`
	ActorRole  string    `db:"actor_role"`
	Action     string    `db:"action"`
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	Detail     string    `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
}

func (s *Store) CreateNotification(ctx context.Context, notification domain.Notification) (*domain.Notification, error) {
	if notification.ID == "" {
		notification.ID = xid.New("ntf")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, title, message, type, item_name, brand, read, created_at)
		VALUES (:id, :title, :message, :type, :item_name, :brand, :read, :created_at)
	`, notificationRow(notification))
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, title, message, type, item_name, brand, read, created_at
		FROM notifications
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Notification(r))
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (email, name, phone, password_hash, role, active, created_at)
		VALUES (:email, :name, :phone, :password_hash, :role, :active, :created_at)
	`, userRow{
		Email:        email,
		Name:         user.Name,
		Phone:        user.Phone,
		PasswordHash: user.Password,
		Role:         user.Role,
		Active:       user.Active,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT email, name, phone, password_hash, role, active, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &domain.UserAccount{
		Email:     row.Email,
		Name:      row.Name,
		Phone:     row.Phone,
		Password:  row.PasswordHash,
		Role:      row.Role,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES (:id, :actor_email, :actor_role, :action, :entity_type, :entity_id, :detail, :created_at)
	`, auditRow(entry))
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit); err != nil {
		return nil, err
	}
	out := make([]domain.AuditLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AuditLog(r))
	}
	return out, nil
}
