package enforcement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/store"
)

// PinTopic pins or unpins a topic.
func (s *Service) PinTopic(ctx context.Context, actorID, topicID string, pinned bool) (err error) {
	defer record("pin_topic", &err)
	return s.contentAction(ctx, actorID, "topic", topicID, func() error {
		return s.repo.SetTopicPinned(ctx, topicID, pinned)
	})
}

// LockTopic locks or unlocks a topic. Locked topics take no new replies.
func (s *Service) LockTopic(ctx context.Context, actorID, topicID string, locked bool) (err error) {
	defer record("lock_topic", &err)
	return s.contentAction(ctx, actorID, "topic", topicID, func() error {
		return s.repo.SetTopicLocked(ctx, topicID, locked)
	})
}

// DeleteTopic removes a topic with its replies.
func (s *Service) DeleteTopic(ctx context.Context, actorID, topicID string) (err error) {
	defer record("delete_topic", &err)
	return s.contentAction(ctx, actorID, "topic", topicID, func() error {
		return s.repo.DeleteTopic(ctx, topicID)
	})
}

// DeleteReply removes a reply with its nested replies.
func (s *Service) DeleteReply(ctx context.Context, actorID, replyID string) (err error) {
	defer record("delete_reply", &err)
	return s.contentAction(ctx, actorID, "reply", replyID, func() error {
		return s.repo.DeleteReply(ctx, replyID)
	})
}

func (s *Service) contentAction(ctx context.Context, actorID, entity, id string, write func() error) error {
	if err := s.authorize(ctx, actorID); err != nil {
		return err
	}
	if id == "" {
		return domain.Validation("%s is required", entity)
	}
	err := write()
	var domainErr *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domain.NotFound(entity)
	default:
		s.logger.Error("content action", zap.String(entity+"_id", id), zap.Error(err))
		return domain.Collaborator("could not update "+entity, err)
	}
}
