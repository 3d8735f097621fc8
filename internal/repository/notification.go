package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craftMaxxingAPI/internal/types/notification"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *notification.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.IsRead, n.CreatedAt,
	)
	return mapErr("create notification", err)
}

// ListNotifications returns the user's notifications, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, data, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, mapErr("list notifications", err)
	}
	defer rows.Close()

	out := []*notification.Notification{}
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, mapErr("scan notification", err)
		}
		out = append(out, &n)
	}
	return out, mapErr("list notifications", rows.Err())
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID,
	).Scan(&n)
	if err != nil {
		return 0, mapErr("count unread notifications", err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. ErrNotFound when the id
// does not exist or belongs to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return mapErr("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID,
	)
	if err != nil {
		return 0, mapErr("mark all notifications read", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) SaveDeviceToken(ctx context.Context, userID string, token notification.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (user_id, token, platform, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform, updated_at = NOW()
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, userID, token.Token, token.Platform)
	return mapErr("save device token", err)
}

func (r *NotificationRepository) ListDeviceTokens(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, mapErr("list device tokens", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowToStructByName[notification.DeviceToken])
	if err != nil {
		return nil, mapErr("list device tokens", err)
	}
	return tokens, nil
}
