package report

import (
	"context"
	"time"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/store"
)

// Repository is the persistence the report lifecycle needs.
type Repository interface {
	GetStanding(ctx context.Context, userID string) (*domain.Standing, error)
	GetTopic(ctx context.Context, id string) (*domain.Post, error)
	GetReply(ctx context.Context, id string) (*domain.Post, error)
	DeleteTopic(ctx context.Context, id string) error
	DeleteReply(ctx context.Context, id string) error

	InsertReport(ctx context.Context, r *domain.Report) error
	FindPendingReport(ctx context.Context, reporterID string, kind domain.PostKind, targetID string) (*domain.Report, error)
	GetReport(ctx context.Context, id string) (*domain.Report, error)
	ListReports(ctx context.Context, status domain.ReportStatus, limit int) ([]domain.Report, error)
	UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus, reviewerID, notes string, at time.Time) error

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
