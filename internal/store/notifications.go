package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agora/forum/internal/domain"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ActorID   *string   `db:"actor_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Link      *string   `db:"link"`
	TopicID   *string   `db:"topic_id"`
	ReplyID   *string   `db:"reply_id"`
	Read      bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

// InsertNotification stores a notification for n.UserID.
func (s *Store) InsertNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.exec(ctx, s.sb.Insert("notifications").
		Columns("id", "user_id", "actor_id", "type", "title", "message", "link", "topic_id", "reply_id", "is_read", "created_at").
		Values(n.ID, n.UserID, nullString(n.ActorID), string(n.Type), n.Title, n.Message,
			nullString(n.Link), nullString(n.TopicID), nullString(n.ReplyID), n.Read, ts(n.CreatedAt)))
	if err != nil {
		return fmt.Errorf("store: insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	b := s.sb.Select("id", "user_id", "actor_id", "type", "title", "message", "link", "topic_id", "reply_id", "is_read", "created_at").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	var rows []notificationRow
	if err := s.selectRows(ctx, &rows, b); err != nil {
		return nil, fmt.Errorf("store: list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			ActorID:   deref(r.ActorID),
			Type:      domain.NotificationType(r.Type),
			Title:     r.Title,
			Message:   r.Message,
			Link:      deref(r.Link),
			TopicID:   deref(r.TopicID),
			ReplyID:   deref(r.ReplyID),
			Read:      r.Read,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// MarkNotificationsRead marks every unread notification of the user as
// read and returns how many changed.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.exec(ctx, s.sb.Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"user_id": userID, "is_read": false}))
	if err != nil {
		return 0, fmt.Errorf("store: mark notifications read: %w", err)
	}
	return n, nil
}
