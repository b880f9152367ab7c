// Package notify delivers forum notifications. A Sink stores one
// notification per user and publishes a realtime hint; a ModeratorGroup
// addresses every current moderator without the caller enumerating them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/metrics"
)

// Store is the persistence a Sink and a DirectGroup need.
type Store interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	ListAdminIDs(ctx context.Context) ([]string, error)
}

// Publisher carries realtime hints and moderator-group notifications.
// *messaging.NATSClient implements it.
type Publisher interface {
	PublishUserNotification(userID string, data []byte) error
	PublishModeratorNotification(data []byte) error
}

// Sink stores notifications and publishes a notify.user.<id> hint.
type Sink struct {
	store  Store
	pub    Publisher
	logger *zap.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewSink returns a Sink. pub may be nil when NATS is not configured.
func NewSink(store Store, pub Publisher, logger *zap.Logger) *Sink {
	return &Sink{store: store, pub: pub, logger: logger.Named("notify"), Now: time.Now}
}

// Notify stores n for n.UserID. The realtime publish is best-effort; only a
// storage failure is returned.
func (s *Sink) Notify(ctx context.Context, n domain.Notification) error {
	if n.UserID == "" {
		return errors.New("notify: missing recipient")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("notify: unknown type %q", n.Type)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.Now().UTC()
	}
	if err := s.store.InsertNotification(ctx, &n); err != nil {
		metrics.NotificationFailures.WithLabelValues("store").Inc()
		return fmt.Errorf("notify: store: %w", err)
	}

	if s.pub == nil {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("marshal notification", zap.String("user_id", n.UserID), zap.Error(err))
		return nil
	}
	if err := s.pub.PublishUserNotification(n.UserID, data); err != nil {
		metrics.NotificationFailures.WithLabelValues("publish").Inc()
		s.logger.Warn("publish notification",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
	return nil
}

// ModeratorGroup notifies every current moderator.
type ModeratorGroup interface {
	NotifyModerators(ctx context.Context, n domain.Notification) error
}

// DirectGroup fans a notification out inline to every admin account.
type DirectGroup struct {
	store Store
	sink  *Sink
}

// NewDirectGroup returns a DirectGroup over store and sink.
func NewDirectGroup(store Store, sink *Sink) *DirectGroup {
	return &DirectGroup{store: store, sink: sink}
}

// NotifyModerators delivers a copy of n to each admin. Every admin is
// attempted; the joined failures are returned.
func (g *DirectGroup) NotifyModerators(ctx context.Context, n domain.Notification) error {
	admins, err := g.store.ListAdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("notify: list admins: %w", err)
	}
	var errs []error
	for _, id := range admins {
		msg := n
		msg.ID = ""
		msg.UserID = id
		if err := g.sink.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("admin %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// RelayGroup publishes the notification to notify.moderators; cmd/notifier
// performs the fan-out.
type RelayGroup struct {
	pub Publisher
}

// NewRelayGroup returns a RelayGroup publishing on pub.
func NewRelayGroup(pub Publisher) *RelayGroup {
	return &RelayGroup{pub: pub}
}

// NotifyModerators publishes n without a recipient.
func (g *RelayGroup) NotifyModerators(_ context.Context, n domain.Notification) error {
	n.UserID = ""
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	if err := g.pub.PublishModeratorNotification(data); err != nil {
		return fmt.Errorf("notify: publish moderators: %w", err)
	}
	return nil
}
