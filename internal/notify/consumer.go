package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/metrics"
	"github.com/agora/forum/internal/moderation"
)

// handleTimeout bounds the work done for one consumed message.
const handleTimeout = 10 * time.Second

// Consumer turns notify.moderators and moderation.flagged messages into
// per-moderator notifications. It runs in cmd/notifier.
type Consumer struct {
	group  ModeratorGroup
	logger *zap.Logger
}

// NewConsumer returns a Consumer fanning out through group.
func NewConsumer(group ModeratorGroup, logger *zap.Logger) *Consumer {
	return &Consumer{group: group, logger: logger.Named("consumer")}
}

// HandleModerator delivers a relayed moderator-group notification.
func (c *Consumer) HandleModerator(data []byte) {
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		c.logger.Warn("unmarshal moderator notification", zap.Error(err))
		return
	}
	c.deliver(n)
}

// HandleFlagged turns an auto-flagged post event into a moderator
// notification.
func (c *Consumer) HandleFlagged(data []byte) {
	var ev moderation.FlaggedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn("unmarshal flagged event", zap.Error(err))
		return
	}
	c.logger.Info("post auto-flagged",
		zap.String("post_id", ev.PostID),
		zap.String("kind", string(ev.Kind)),
		zap.String("author_id", ev.AuthorID),
		zap.String("severity", string(ev.Severity)),
	)
	c.deliver(FlaggedNotification(ev))
}

func (c *Consumer) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := c.group.NotifyModerators(ctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues("fanout").Inc()
		c.logger.Warn("moderator fan-out", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

// FlaggedNotification builds the moderator notification for ev.
func FlaggedNotification(ev moderation.FlaggedEvent) domain.Notification {
	n := domain.Notification{
		ActorID: ev.AuthorID,
		Type:    domain.NotifyFlagged,
		Title:   "Content automatically flagged",
		TopicID: ev.TopicID,
		Link:    "/forum/topic/" + ev.TopicID,
	}
	if ev.Kind == moderation.ContentReply {
		n.ReplyID = ev.PostID
		n.Message = fmt.Sprintf("A reply was flagged (%s severity): %s", ev.Severity, ev.Reason)
	} else {
		n.Message = fmt.Sprintf("Topic %q was flagged (%s severity): %s", ev.Title, ev.Severity, ev.Reason)
	}
	return n
}
