// Package report implements the report lifecycle: users report topics and
// replies, moderators are notified, and admins move each report from
// pending to reviewed, resolved or dismissed. Resolving with content
// deletion removes the reported post in the same transaction.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/metrics"
	"github.com/agora/forum/internal/notify"
	"github.com/agora/forum/internal/store"
)

const (
	maxDescriptionLength = 1000
	maxTitleExcerpt      = 50
	defaultListLimit     = 100
	reportsLink          = "/admin/reports"
)

// CreateInput is a report as submitted.
type CreateInput struct {
	TargetKind  domain.PostKind   `json:"targetKind"`
	TargetID    string            `json:"targetId"`
	Type        domain.ReportType `json:"reportType"`
	Description string            `json:"description"`
}

// Review is an admin decision on a pending report.
type Review struct {
	Status        domain.ReportStatus `json:"status"`
	AdminNotes    string              `json:"adminNotes"`
	DeleteContent bool                `json:"deleteContent"`
}

// Service runs the report lifecycle.
type Service struct {
	repo       Repository
	moderators notify.ModeratorGroup
	logger     *zap.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewService returns a Service. moderators receives one notification per
// new report.
func NewService(repo Repository, moderators notify.ModeratorGroup, logger *zap.Logger) *Service {
	return &Service{repo: repo, moderators: moderators, logger: logger.Named("report"), Now: time.Now}
}

// Create files a report by reporterID. A reporter may hold only one
// pending report per target.
func (s *Service) Create(ctx context.Context, reporterID string, in CreateInput) (*domain.Report, error) {
	if reporterID == "" {
		return nil, domain.Unauthenticated()
	}
	in.TargetID = strings.TrimSpace(in.TargetID)
	in.Description = strings.TrimSpace(in.Description)
	if !in.TargetKind.Valid() {
		return nil, domain.Validation("invalid target kind %q", in.TargetKind)
	}
	if in.TargetID == "" {
		return nil, domain.Validation("target is required")
	}
	if !in.Type.Valid() {
		return nil, domain.Validation("invalid report type %q", in.Type)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return nil, domain.Validation("description must be at most %d characters", maxDescriptionLength)
	}

	topic, err := s.resolveTarget(ctx, in.TargetKind, in.TargetID)
	if err != nil {
		return nil, err
	}

	_, err = s.repo.FindPendingReport(ctx, reporterID, in.TargetKind, in.TargetID)
	switch {
	case err == nil:
		return nil, domain.Rejected("already reported")
	case !errors.Is(err, store.ErrNotFound):
		return nil, domain.Collaborator("could not check existing reports", err)
	}

	r := &domain.Report{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		TargetKind:  in.TargetKind,
		TargetID:    in.TargetID,
		Type:        in.Type,
		Description: in.Description,
		Status:      domain.ReportPending,
		CreatedAt:   s.Now().UTC(),
	}
	if err := s.repo.InsertReport(ctx, r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.Rejected("already reported")
		}
		s.logger.Error("insert report", zap.String("reporter_id", reporterID), zap.Error(err))
		return nil, domain.Collaborator("could not save report", err)
	}
	metrics.ReportsTotal.WithLabelValues(string(r.Type)).Inc()

	s.notifyModerators(ctx, r, topic)
	return r, nil
}

// List returns reports newest first, optionally only those in status.
func (s *Service) List(ctx context.Context, actorID string, status domain.ReportStatus, limit int) ([]domain.Report, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, domain.Validation("invalid status %q", status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	list, err := s.repo.ListReports(ctx, status, limit)
	if err != nil {
		return nil, domain.Collaborator("could not load reports", err)
	}
	return list, nil
}

// UpdateStatus moves a pending report to a terminal status. With
// DeleteContent on a resolve, the reported post is deleted first; a post
// that is already gone does not block the transition.
func (s *Service) UpdateStatus(ctx context.Context, actorID, reportID string, rv Review) (*domain.Report, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	if rv.Status == domain.ReportPending || !rv.Status.Valid() {
		return nil, domain.Validation("invalid status %q", rv.Status)
	}
	if rv.DeleteContent && rv.Status != domain.ReportResolved {
		return nil, domain.Validation("content can only be deleted when resolving a report")
	}

	r, err := s.repo.GetReport(ctx, reportID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound("report")
	}
	if err != nil {
		return nil, domain.Collaborator("could not load report", err)
	}
	if r.Status.Terminal() {
		return nil, domain.Rejected("report is already %s", r.Status)
	}

	at := s.Now().UTC()
	notes := strings.TrimSpace(rv.AdminNotes)
	err = s.repo.Atomic(ctx, func(tx Repository) error {
		if rv.DeleteContent {
			if err := deleteTarget(ctx, tx, r); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return tx.UpdateReportStatus(ctx, r.ID, rv.Status, actorID, notes, at)
	})
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, domain.Rejected("report is no longer pending")
	case errors.Is(err, store.ErrNotFound):
		return nil, domain.NotFound("report")
	case err != nil:
		s.logger.Error("update report", zap.String("report_id", r.ID), zap.Error(err))
		return nil, domain.Collaborator("could not update report", err)
	}
	metrics.ReportTransitions.WithLabelValues(string(rv.Status)).Inc()
	s.logger.Info("report reviewed",
		zap.String("report_id", r.ID),
		zap.String("status", string(rv.Status)),
		zap.Bool("content_deleted", rv.DeleteContent),
	)

	r.Status = rv.Status
	r.ReviewedBy = actorID
	r.ReviewedAt = &at
	r.AdminNotes = notes
	return r, nil
}

// resolveTarget loads the reported post and returns the topic it belongs
// to.
func (s *Service) resolveTarget(ctx context.Context, kind domain.PostKind, id string) (*domain.Post, error) {
	topicID := id
	if kind == domain.KindReply {
		reply, err := s.repo.GetReply(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound("reply")
		}
		if err != nil {
			return nil, domain.Collaborator("could not load reply", err)
		}
		topicID = reply.TopicID
	}
	topic, err := s.repo.GetTopic(ctx, topicID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound("topic")
	}
	if err != nil {
		return nil, domain.Collaborator("could not load topic", err)
	}
	return topic, nil
}

func (s *Service) notifyModerators(ctx context.Context, r *domain.Report, topic *domain.Post) {
	if s.moderators == nil {
		return
	}
	n := domain.Notification{
		ActorID: r.ReporterID,
		Type:    domain.NotifyReport,
		Title:   "New report: " + r.Type.Label(),
		Link:    reportsLink,
		TopicID: topic.ID,
	}
	excerpt := truncate(topic.Title, maxTitleExcerpt)
	if r.TargetKind == domain.KindReply {
		n.ReplyID = r.TargetID
		n.Message = fmt.Sprintf("A reply in %q was reported", excerpt)
	} else {
		n.Message = fmt.Sprintf("Topic %q was reported", excerpt)
	}
	if err := s.moderators.NotifyModerators(ctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues("fanout").Inc()
		s.logger.Warn("notify moderators", zap.String("report_id", r.ID), zap.Error(err))
	}
}

func (s *Service) authorize(ctx context.Context, actorID string) error {
	if actorID == "" {
		return domain.Unauthenticated()
	}
	actor, err := s.repo.GetStanding(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Forbidden("admin role required")
	}
	if err != nil {
		return domain.Collaborator("could not load user", err)
	}
	if !actor.IsAdmin() {
		return domain.Forbidden("admin role required")
	}
	return nil
}

func deleteTarget(ctx context.Context, repo Repository, r *domain.Report) error {
	if r.TargetKind == domain.KindReply {
		return repo.DeleteReply(ctx, r.TargetID)
	}
	return repo.DeleteTopic(ctx, r.TargetID)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
