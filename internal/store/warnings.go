package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agora/forum/internal/domain"
)

type warningRow struct {
	ID                   string    `db:"id"`
	UserID               string    `db:"user_id"`
	AdminID              *string   `db:"admin_id"`
	Reason               string    `db:"reason"`
	Type                 string    `db:"warning_type"`
	TimeoutDurationHours *int      `db:"timeout_duration_hours"`
	CreatedAt            time.Time `db:"created_at"`
}

// InsertWarning appends a warning record. Records are never updated.
func (s *Store) InsertWarning(ctx context.Context, w *domain.WarningRecord) error {
	_, err := s.exec(ctx, s.sb.Insert("user_warnings").
		Columns("id", "user_id", "admin_id", "reason", "warning_type", "timeout_duration_hours", "created_at").
		Values(w.ID, w.UserID, nullString(w.AdminID), w.Reason, string(w.Type), w.TimeoutDurationHours, ts(w.CreatedAt)))
	if err != nil {
		return fmt.Errorf("store: insert warning: %w", err)
	}
	return nil
}

// ListWarnings returns a user's warning history, newest first.
func (s *Store) ListWarnings(ctx context.Context, userID string) ([]domain.WarningRecord, error) {
	var rows []warningRow
	err := s.selectRows(ctx, &rows, s.sb.
		Select("id", "user_id", "admin_id", "reason", "warning_type", "timeout_duration_hours", "created_at").
		From("user_warnings").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id"))
	if err != nil {
		return nil, fmt.Errorf("store: list warnings: %w", err)
	}
	out := make([]domain.WarningRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.WarningRecord{
			ID:                   r.ID,
			UserID:               r.UserID,
			AdminID:              deref(r.AdminID),
			Reason:               r.Reason,
			Type:                 domain.WarningType(r.Type),
			TimeoutDurationHours: r.TimeoutDurationHours,
			CreatedAt:            r.CreatedAt.UTC(),
		})
	}
	return out, nil
}
