// Package enforcement implements the admin actions on a user's standing
// (warn, timeout, ban, role changes, deletion) and on content (pin, lock,
// delete). Every action re-reads the actor's role from the store. Actions on
// a user reject self-targeting and targeting another admin before anything
// is written. Category administration lives here too.
package enforcement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/metrics"
	"github.com/agora/forum/internal/store"
)

const (
	minTimeoutHours = 1
	maxTimeoutHours = 720

	noReason = "No reason given"
)

// Notifier delivers a notification to one user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Service runs enforcement actions.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewService returns a Service.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger.Named("enforcement"), Now: time.Now}
}

// Warn records a warning against userID and notifies them. Each call adds
// a warning; callers must not retry on ambiguous failure.
func (s *Service) Warn(ctx context.Context, actorID, userID, reason string) (err error) {
	defer record("warn", &err)

	reason = strings.TrimSpace(reason)
	if _, err = s.target(ctx, actorID, userID); err != nil {
		return err
	}
	if reason == "" {
		return domain.Validation("reason is required")
	}

	now := s.Now().UTC()
	err = s.repo.Atomic(ctx, func(r Repository) error {
		if err := r.IncrementWarnings(ctx, userID, now); err != nil {
			return err
		}
		return r.InsertWarning(ctx, &domain.WarningRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			AdminID:   actorID,
			Reason:    reason,
			Type:      domain.WarningPlain,
			CreatedAt: now,
		})
	})
	if err != nil {
		return s.writeError("warn", userID, err)
	}

	s.logger.Info("user warned", zap.String("user_id", userID), zap.String("admin_id", actorID))
	s.notify(ctx, domain.Notification{
		UserID:  userID,
		ActorID: actorID,
		Type:    domain.NotifyWarning,
		Title:   "You have received a warning",
		Message: reason,
	})
	return nil
}

// Timeout suspends userID from posting for hours. It replaces any existing
// timeout and counts as a warning.
func (s *Service) Timeout(ctx context.Context, actorID, userID, reason string, hours int) (err error) {
	defer record("timeout", &err)

	reason = strings.TrimSpace(reason)
	if _, err = s.target(ctx, actorID, userID); err != nil {
		return err
	}
	if reason == "" {
		return domain.Validation("reason is required")
	}
	if hours < minTimeoutHours || hours > maxTimeoutHours {
		return domain.Validation("timeout duration must be between %d and %d hours", minTimeoutHours, maxTimeoutHours)
	}

	now := s.Now().UTC()
	until := now.Add(time.Duration(hours) * time.Hour)
	err = s.repo.Atomic(ctx, func(r Repository) error {
		if err := r.SetTimeout(ctx, userID, until, reason); err != nil {
			return err
		}
		if err := r.IncrementWarnings(ctx, userID, now); err != nil {
			return err
		}
		return r.InsertWarning(ctx, &domain.WarningRecord{
			ID:                   uuid.NewString(),
			UserID:               userID,
			AdminID:              actorID,
			Reason:               reason,
			Type:                 domain.WarningTimeout,
			TimeoutDurationHours: &hours,
			CreatedAt:            now,
		})
	})
	if err != nil {
		return s.writeError("timeout", userID, err)
	}

	s.logger.Info("user timed out",
		zap.String("user_id", userID),
		zap.String("admin_id", actorID),
		zap.Time("until", until),
	)
	s.notify(ctx, domain.Notification{
		UserID:  userID,
		ActorID: actorID,
		Type:    domain.NotifyTimeout,
		Title:   fmt.Sprintf("Timeout for %d hours", hours),
		Message: reason,
	})
	return nil
}

// RemoveTimeout clears any timeout on userID.
func (s *Service) RemoveTimeout(ctx context.Context, actorID, userID string) (err error) {
	defer record("remove_timeout", &err)

	if _, err = s.target(ctx, actorID, userID); err != nil {
		return err
	}
	if err = s.repo.ClearTimeout(ctx, userID); err != nil {
		return s.writeError("remove timeout", userID, err)
	}
	return nil
}

// Ban blocks userID permanently. Banning a banned user overwrites the ban
// reason and time.
func (s *Service) Ban(ctx context.Context, actorID, userID, reason string) (err error) {
	defer record("ban", &err)

	reason = strings.TrimSpace(reason)
	if _, err = s.target(ctx, actorID, userID); err != nil {
		return err
	}
	if err = s.repo.SetBan(ctx, userID, actorID, reason, s.Now().UTC()); err != nil {
		return s.writeError("ban", userID, err)
	}

	s.logger.Info("user banned", zap.String("user_id", userID), zap.String("admin_id", actorID))
	msg := reason
	if msg == "" {
		msg = noReason
	}
	s.notify(ctx, domain.Notification{
		UserID:  userID,
		ActorID: actorID,
		Type:    domain.NotifyBan,
		Title:   "Your account has been banned",
		Message: msg,
	})
	return nil
}

// Unban lifts a ban on userID.
func (s *Service) Unban(ctx context.Context, actorID, userID string) (err error) {
	defer record("unban", &err)

	if _, err = s.target(ctx, actorID, userID); err != nil {
		return err
	}
	if err = s.repo.ClearBan(ctx, userID); err != nil {
		return s.writeError("unban", userID, err)
	}
	return nil
}

// ChangeRole sets userID's role. An admin may not remove their own admin
// role; any other change, including on other admins, is allowed.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID string, role domain.Role) (err error) {
	defer record("change_role", &err)

	if err = s.authorize(ctx, actorID); err != nil {
		return err
	}
	if !role.Valid() {
		return domain.Validation("invalid role %q", role)
	}
	if userID == actorID && role != domain.RoleAdmin {
		return domain.Forbidden("cannot remove your own admin role")
	}
	if err = s.repo.SetRole(ctx, userID, role); err != nil {
		return s.writeError("change role", userID, err)
	}
	s.logger.Info("role changed",
		zap.String("user_id", userID),
		zap.String("admin_id", actorID),
		zap.String("role", string(role)),
	)
	return nil
}

// DeleteUser removes userID. The schema cascades their content.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) (err error) {
	defer record("delete_user", &err)

	if _, err = s.target(ctx, actorID, userID); err != nil {
		return err
	}
	if err = s.repo.DeleteProfile(ctx, userID); err != nil {
		return s.writeError("delete user", userID, err)
	}
	s.logger.Info("user deleted", zap.String("user_id", userID), zap.String("admin_id", actorID))
	return nil
}

// Warnings returns userID's warning history, newest first.
func (s *Service) Warnings(ctx context.Context, actorID, userID string) ([]domain.WarningRecord, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetStanding(ctx, userID); err != nil {
		return nil, lookupError("user", err)
	}
	list, err := s.repo.ListWarnings(ctx, userID)
	if err != nil {
		return nil, domain.Collaborator("could not load warnings", err)
	}
	return list, nil
}

// authorize requires actorID to be an admin.
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

// target authorizes actorID and loads userID, rejecting self-targeting and
// admin targets.
func (s *Service) target(ctx context.Context, actorID, userID string) (*domain.Standing, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	if userID == actorID {
		return nil, domain.Forbidden("cannot perform this action on yourself")
	}
	st, err := s.repo.GetStanding(ctx, userID)
	if err != nil {
		return nil, lookupError("user", err)
	}
	if st.IsAdmin() {
		return nil, domain.Forbidden("cannot perform this action on another admin")
	}
	return st, nil
}

func (s *Service) writeError(op, userID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("user")
	}
	s.logger.Error(op, zap.String("user_id", userID), zap.Error(err))
	return domain.Collaborator("could not update user", err)
}

func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues("enforcement").Inc()
		s.logger.Warn("notify",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

func lookupError(entity string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(entity)
	}
	return domain.Collaborator("could not load "+entity, err)
}

// record counts the action's outcome.
func record(action string, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = "rejected"
		if domain.KindOf(err) == domain.KindCollaborator {
			outcome = "error"
		}
	}
	metrics.EnforcementActions.WithLabelValues(action, outcome).Inc()
}
