package enforcement

import (
	"context"
	"time"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/store"
)

// Repository is the persistence the enforcement actions need.
type Repository interface {
	GetStanding(ctx context.Context, userID string) (*domain.Standing, error)
	IncrementWarnings(ctx context.Context, userID string, at time.Time) error
	SetTimeout(ctx context.Context, userID string, until time.Time, reason string) error
	ClearTimeout(ctx context.Context, userID string) error
	SetBan(ctx context.Context, userID, bannedBy, reason string, at time.Time) error
	ClearBan(ctx context.Context, userID string) error
	SetRole(ctx context.Context, userID string, role domain.Role) error
	DeleteProfile(ctx context.Context, userID string) error
	InsertWarning(ctx context.Context, w *domain.WarningRecord) error
	ListWarnings(ctx context.Context, userID string) ([]domain.WarningRecord, error)

	SetTopicPinned(ctx context.Context, id string, pinned bool) error
	SetTopicLocked(ctx context.Context, id string, locked bool) error
	DeleteTopic(ctx context.Context, id string) error
	DeleteReply(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error

	// Atomic runs fn against a repository whose writes commit together.
	Atomic(ctx context.Context, fn func(Repository) error) error
}

type sqlRepository struct {
	*store.Store
}

// NewRepository adapts a SQL store.
func NewRepository(s *store.Store) Repository {
	return sqlRepository{Store: s}
}

func (r sqlRepository) Atomic(ctx context.Context, fn func(Repository) error) error {
	return r.Store.WithTx(ctx, func(tx *store.Store) error {
		return fn(sqlRepository{Store: tx})
	})
}
