package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const notificationColumns = `id, user_id, title, message, type, category, priority,
	action_url, action_label, icon, data, is_read, read_at, is_archived, archived_at, created_at`

// Storage is a notifications.Storage backed by the notifications table.
type Storage struct {
	db DB
}

var _ notifications.Storage = (*Storage)(nil)

// NewStorage creates a notification store.
func NewStorage(db DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Create(ctx context.Context, n notifications.Notification) error {
	if n.ID == "" || n.UserID == "" {
		return errors.New("notification id and user id are required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Category, n.Priority,
		n.ActionURL, n.ActionLabel, n.Icon, n.Data, n.IsRead, n.ReadAt, n.IsArchived, n.ArchivedAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, userID, id string) (notifications.Notification, error) {
	row := s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	n, err := scanNotification(row)
	if pg.IsNotFoundError(err) {
		return notifications.Notification{}, notifications.ErrNotificationNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (s *Storage) List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Notification, int, error) {
	opts = opts.Normalize()
	where, args := listFilter(userID, opts)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	if total == 0 || opts.Offset() >= total {
		return []notifications.Notification{}, total, nil
	}

	args = append(args, opts.PageSize, opts.Offset())
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		notificationColumns, where, len(args)-1, len(args),
	), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Notification, error) {
		return scanNotification(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan notifications: %w", err)
	}
	return items, total, nil
}

func listFilter(userID string, opts notifications.ListOptions) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	if !opts.IncludeArchived {
		conds = append(conds, "NOT is_archived")
	}
	if opts.UnreadOnly {
		conds = append(conds, "NOT is_read")
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (s *Storage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read AND NOT is_archived`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *Storage) Update(ctx context.Context, userID, id string, fn func(*notifications.Notification) bool) (notifications.Notification, error) {
	var out notifications.Notification
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 AND id = $2 FOR UPDATE`,
			userID, id,
		)
		n, err := scanNotification(row)
		if err != nil {
			return err
		}
		if !fn(&n) {
			out = n
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE notifications
			SET is_read = $3, read_at = $4, is_archived = $5, archived_at = $6
			WHERE user_id = $1 AND id = $2`,
			userID, id, n.IsRead, n.ReadAt, n.IsArchived, n.ArchivedAt,
		)
		out = n
		return err
	})
	if pg.IsNotFoundError(err) {
		return notifications.Notification{}, notifications.ErrNotificationNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("failed to update notification: %w", err)
	}
	return out, nil
}

func (s *Storage) MarkAllRead(ctx context.Context, userID, category string, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = $3
		WHERE user_id = $1 AND NOT is_read AND NOT is_archived
		  AND ($2 = '' OR category = $2)`,
		userID, category, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (notifications.Notification, error) {
	var n notifications.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Category, &n.Priority,
		&n.ActionURL, &n.ActionLabel, &n.Icon, &n.Data,
		&n.IsRead, &n.ReadAt, &n.IsArchived, &n.ArchivedAt, &n.CreatedAt,
	)
	return n, err
}
