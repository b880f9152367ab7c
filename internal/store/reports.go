package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agora/forum/internal/domain"
)

var reportColumns = []string{
	"id", "reporter_id", "target_kind", "target_id", "report_type", "description",
	"status", "reviewed_by", "reviewed_at", "admin_notes", "created_at",
}

type reportRow struct {
	ID          string     `db:"id"`
	ReporterID  string     `db:"reporter_id"`
	TargetKind  string     `db:"target_kind"`
	TargetID    string     `db:"target_id"`
	Type        string     `db:"report_type"`
	Description *string    `db:"description"`
	Status      string     `db:"status"`
	ReviewedBy  *string    `db:"reviewed_by"`
	ReviewedAt  *time.Time `db:"reviewed_at"`
	AdminNotes  *string    `db:"admin_notes"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r reportRow) report() *domain.Report {
	return &domain.Report{
		ID:          r.ID,
		ReporterID:  r.ReporterID,
		TargetKind:  domain.PostKind(r.TargetKind),
		TargetID:    r.TargetID,
		Type:        domain.ReportType(r.Type),
		Description: deref(r.Description),
		Status:      domain.ReportStatus(r.Status),
		ReviewedBy:  deref(r.ReviewedBy),
		ReviewedAt:  utcPtr(r.ReviewedAt),
		AdminNotes:  deref(r.AdminNotes),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// InsertReport persists a new pending report. A second pending report by
// the same reporter on the same target returns ErrConflict.
func (s *Store) InsertReport(ctx context.Context, r *domain.Report) error {
	_, err := s.exec(ctx, s.sb.Insert("reports").
		Columns("id", "reporter_id", "target_kind", "target_id", "report_type", "description", "status", "created_at").
		Values(r.ID, r.ReporterID, string(r.TargetKind), r.TargetID, string(r.Type),
			nullString(r.Description), string(r.Status), ts(r.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: insert report: %w", err)
	}
	return nil
}

// FindPendingReport returns the reporter's pending report on a target.
func (s *Store) FindPendingReport(ctx context.Context, reporterID string, kind domain.PostKind, targetID string) (*domain.Report, error) {
	var row reportRow
	err := s.get(ctx, &row, s.sb.Select(reportColumns...).From("reports").Where(sq.Eq{
		"reporter_id": reporterID,
		"target_kind": string(kind),
		"target_id":   targetID,
		"status":      string(domain.ReportPending),
	}))
	if err != nil {
		return nil, wrapRead("find pending report", err)
	}
	return row.report(), nil
}

// GetReport loads a report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	var row reportRow
	err := s.get(ctx, &row, s.sb.Select(reportColumns...).From("reports").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, wrapRead("get report", err)
	}
	return row.report(), nil
}

// ListReports returns reports newest first, optionally filtered by status.
func (s *Store) ListReports(ctx context.Context, status domain.ReportStatus, limit int) ([]domain.Report, error) {
	b := s.sb.Select(reportColumns...).From("reports").OrderBy("created_at DESC", "id")
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	var rows []reportRow
	if err := s.selectRows(ctx, &rows, b); err != nil {
		return nil, fmt.Errorf("store: list reports: %w", err)
	}
	out := make([]domain.Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.report())
	}
	return out, nil
}

// UpdateReportStatus moves a pending report to status. A report that is no
// longer pending returns ErrConflict; a missing one ErrNotFound.
func (s *Store) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus, reviewerID, notes string, at time.Time) error {
	n, err := s.exec(ctx, s.sb.Update("reports").
		Set("status", string(status)).
		Set("reviewed_by", nullString(reviewerID)).
		Set("reviewed_at", ts(at)).
		Set("admin_notes", nullString(notes)).
		Where(sq.Eq{"id": id, "status": string(domain.ReportPending)}))
	if err != nil {
		return fmt.Errorf("store: update report: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetReport(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}
