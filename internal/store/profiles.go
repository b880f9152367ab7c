package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agora/forum/internal/domain"
)

var profileColumns = []string{
	"id", "username", "role", "is_banned", "banned_at", "ban_reason", "banned_by",
	"warning_count", "last_warning_at", "timeout_until", "timeout_reason",
}

type profileRow struct {
	ID            string     `db:"id"`
	Username      string     `db:"username"`
	Role          string     `db:"role"`
	IsBanned      bool       `db:"is_banned"`
	BannedAt      *time.Time `db:"banned_at"`
	BanReason     *string    `db:"ban_reason"`
	BannedBy      *string    `db:"banned_by"`
	WarningCount  int        `db:"warning_count"`
	LastWarningAt *time.Time `db:"last_warning_at"`
	TimeoutUntil  *time.Time `db:"timeout_until"`
	TimeoutReason *string    `db:"timeout_reason"`
}

func (r profileRow) standing() *domain.Standing {
	return &domain.Standing{
		UserID:        r.ID,
		Username:      r.Username,
		Role:          domain.Role(r.Role),
		IsBanned:      r.IsBanned,
		BannedAt:      utcPtr(r.BannedAt),
		BanReason:     deref(r.BanReason),
		BannedBy:      deref(r.BannedBy),
		WarningCount:  r.WarningCount,
		LastWarningAt: utcPtr(r.LastWarningAt),
		TimeoutUntil:  utcPtr(r.TimeoutUntil),
		TimeoutReason: deref(r.TimeoutReason),
	}
}

// CreateProfile inserts a user profile. Duplicate usernames return
// ErrConflict.
func (s *Store) CreateProfile(ctx context.Context, userID, username string, role domain.Role) error {
	_, err := s.exec(ctx, s.sb.Insert("profiles").
		Columns("id", "username", "role", "created_at").
		Values(userID, username, string(role), ts(time.Now())))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: create profile: %w", err)
	}
	return nil
}

// GetStanding returns the moderation standing of a user.
func (s *Store) GetStanding(ctx context.Context, userID string) (*domain.Standing, error) {
	var row profileRow
	err := s.get(ctx, &row, s.sb.Select(profileColumns...).From("profiles").Where(sq.Eq{"id": userID}))
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("store: get standing: %w", err)
	}
	return row.standing(), nil
}

// FindByUsernames returns the profiles whose username is in names.
func (s *Store) FindByUsernames(ctx context.Context, names []string) ([]domain.Standing, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var rows []profileRow
	err := s.selectRows(ctx, &rows, s.sb.Select(profileColumns...).From("profiles").
		Where(sq.Eq{"username": names}).OrderBy("username"))
	if err != nil {
		return nil, fmt.Errorf("store: find by usernames: %w", err)
	}
	out := make([]domain.Standing, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.standing())
	}
	return out, nil
}

// ListAdminIDs returns the ids of every admin account.
func (s *Store) ListAdminIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.selectRows(ctx, &ids, s.sb.Select("id").From("profiles").
		Where(sq.Eq{"role": string(domain.RoleAdmin)}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("store: list admins: %w", err)
	}
	return ids, nil
}

// IncrementWarnings bumps warning_count in place and stamps last_warning_at.
func (s *Store) IncrementWarnings(ctx context.Context, userID string, at time.Time) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("profiles").
		Set("warning_count", sq.Expr("warning_count + 1")).
		Set("last_warning_at", ts(at)).
		Where(sq.Eq{"id": userID})))
	return wrapWrite("increment warnings", err)
}

// SetTimeout overwrites any existing timeout.
func (s *Store) SetTimeout(ctx context.Context, userID string, until time.Time, reason string) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("profiles").
		Set("timeout_until", ts(until)).
		Set("timeout_reason", nullString(reason)).
		Where(sq.Eq{"id": userID})))
	return wrapWrite("set timeout", err)
}

// ClearTimeout removes the timeout unconditionally.
func (s *Store) ClearTimeout(ctx context.Context, userID string) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("profiles").
		Set("timeout_until", nil).
		Set("timeout_reason", nil).
		Where(sq.Eq{"id": userID})))
	return wrapWrite("clear timeout", err)
}

// SetBan marks the user banned. An existing ban is overwritten.
func (s *Store) SetBan(ctx context.Context, userID, bannedBy, reason string, at time.Time) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("profiles").
		Set("is_banned", true).
		Set("banned_at", ts(at)).
		Set("ban_reason", nullString(reason)).
		Set("banned_by", nullString(bannedBy)).
		Where(sq.Eq{"id": userID})))
	return wrapWrite("set ban", err)
}

// ClearBan lifts a ban unconditionally.
func (s *Store) ClearBan(ctx context.Context, userID string) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("profiles").
		Set("is_banned", false).
		Set("banned_at", nil).
		Set("ban_reason", nil).
		Set("banned_by", nil).
		Where(sq.Eq{"id": userID})))
	return wrapWrite("clear ban", err)
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, userID string, role domain.Role) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("profiles").
		Set("role", string(role)).
		Where(sq.Eq{"id": userID})))
	return wrapWrite("set role", err)
}

// DeleteProfile removes a user. Topics, replies, warnings, reports filed
// and notifications cascade in the schema.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	err := mustAffect(s.exec(ctx, s.sb.Delete("profiles").Where(sq.Eq{"id": userID})))
	return wrapWrite("delete profile", err)
}

// wrapWrite prefixes driver errors and passes sentinel errors through.
func wrapWrite(op string, err error) error {
	if err == nil || err == ErrNotFound || err == ErrConflict {
		return err
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
