package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agora/forum/internal/domain"
)

type topicRow struct {
	ID               string    `db:"id"`
	CategoryID       string    `db:"category_id"`
	AuthorID         string    `db:"author_id"`
	Title            string    `db:"title"`
	Slug             string    `db:"slug"`
	Content          string    `db:"content"`
	Pinned           bool      `db:"is_pinned"`
	Locked           bool      `db:"is_locked"`
	ModerationStatus string    `db:"moderation_status"`
	AutoFlagged      bool      `db:"auto_flagged"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r topicRow) post() *domain.Post {
	return &domain.Post{
		ID:               r.ID,
		Kind:             domain.KindTopic,
		AuthorID:         r.AuthorID,
		CategoryID:       r.CategoryID,
		TopicID:          r.ID,
		Title:            r.Title,
		Slug:             r.Slug,
		Content:          r.Content,
		Pinned:           r.Pinned,
		Locked:           r.Locked,
		ModerationStatus: domain.ModerationStatus(r.ModerationStatus),
		AutoFlagged:      r.AutoFlagged,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

type replyRow struct {
	ID               string    `db:"id"`
	TopicID          string    `db:"topic_id"`
	AuthorID         string    `db:"author_id"`
	ParentReplyID    *string   `db:"parent_reply_id"`
	Content          string    `db:"content"`
	ModerationStatus string    `db:"moderation_status"`
	AutoFlagged      bool      `db:"auto_flagged"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r replyRow) post() *domain.Post {
	return &domain.Post{
		ID:               r.ID,
		Kind:             domain.KindReply,
		AuthorID:         r.AuthorID,
		TopicID:          r.TopicID,
		ParentReplyID:    deref(r.ParentReplyID),
		Content:          r.Content,
		ModerationStatus: domain.ModerationStatus(r.ModerationStatus),
		AutoFlagged:      r.AutoFlagged,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

var (
	topicColumns = []string{
		"id", "category_id", "author_id", "title", "slug", "content",
		"is_pinned", "is_locked", "moderation_status", "auto_flagged", "created_at",
	}
	replyColumns = []string{
		"id", "topic_id", "author_id", "parent_reply_id", "content",
		"moderation_status", "auto_flagged", "created_at",
	}
)

// InsertTopic persists a new topic. A slug collision returns ErrConflict.
func (s *Store) InsertTopic(ctx context.Context, p *domain.Post) error {
	_, err := s.exec(ctx, s.sb.Insert("topics").
		Columns("id", "category_id", "author_id", "title", "slug", "content",
			"is_pinned", "is_locked", "moderation_status", "auto_flagged", "created_at").
		Values(p.ID, p.CategoryID, p.AuthorID, p.Title, p.Slug, p.Content,
			p.Pinned, p.Locked, string(p.ModerationStatus), p.AutoFlagged, ts(p.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: insert topic: %w", err)
	}
	return nil
}

// InsertReply persists a new reply.
func (s *Store) InsertReply(ctx context.Context, p *domain.Post) error {
	_, err := s.exec(ctx, s.sb.Insert("replies").
		Columns("id", "topic_id", "author_id", "parent_reply_id", "content",
			"moderation_status", "auto_flagged", "created_at").
		Values(p.ID, p.TopicID, p.AuthorID, nullString(p.ParentReplyID), p.Content,
			string(p.ModerationStatus), p.AutoFlagged, ts(p.CreatedAt)))
	if err != nil {
		return fmt.Errorf("store: insert reply: %w", err)
	}
	return nil
}

// GetTopic loads a topic by id.
func (s *Store) GetTopic(ctx context.Context, id string) (*domain.Post, error) {
	var row topicRow
	err := s.get(ctx, &row, s.sb.Select(topicColumns...).From("topics").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, wrapRead("get topic", err)
	}
	return row.post(), nil
}

// GetReply loads a reply by id.
func (s *Store) GetReply(ctx context.Context, id string) (*domain.Post, error) {
	var row replyRow
	err := s.get(ctx, &row, s.sb.Select(replyColumns...).From("replies").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, wrapRead("get reply", err)
	}
	return row.post(), nil
}

// RecentTopics returns the author's latest topics, newest first.
func (s *Store) RecentTopics(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	var rows []topicRow
	err := s.selectRows(ctx, &rows, s.sb.Select(topicColumns...).From("topics").
		Where(sq.Eq{"author_id": authorID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("store: recent topics: %w", err)
	}
	out := make([]domain.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.post())
	}
	return out, nil
}

// RecentReplies returns the author's latest replies, newest first.
func (s *Store) RecentReplies(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	var rows []replyRow
	err := s.selectRows(ctx, &rows, s.sb.Select(replyColumns...).From("replies").
		Where(sq.Eq{"author_id": authorID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("store: recent replies: %w", err)
	}
	out := make([]domain.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.post())
	}
	return out, nil
}

// DeleteTopic removes a topic and, through the schema, its replies and tags.
func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	err := mustAffect(s.exec(ctx, s.sb.Delete("topics").Where(sq.Eq{"id": id})))
	return wrapWrite("delete topic", err)
}

// DeleteReply removes a reply and its nested replies.
func (s *Store) DeleteReply(ctx context.Context, id string) error {
	err := mustAffect(s.exec(ctx, s.sb.Delete("replies").Where(sq.Eq{"id": id})))
	return wrapWrite("delete reply", err)
}

// SetTopicPinned pins or unpins a topic.
func (s *Store) SetTopicPinned(ctx context.Context, id string, pinned bool) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("topics").Set("is_pinned", pinned).Where(sq.Eq{"id": id})))
	return wrapWrite("pin topic", err)
}

// SetTopicLocked locks or unlocks a topic.
func (s *Store) SetTopicLocked(ctx context.Context, id string, locked bool) error {
	err := mustAffect(s.exec(ctx, s.sb.Update("topics").Set("is_locked", locked).Where(sq.Eq{"id": id})))
	return wrapWrite("lock topic", err)
}

// AttachTags links tags to a topic. Unknown tag ids fail the whole call.
func (s *Store) AttachTags(ctx context.Context, topicID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	b := s.sb.Insert("topic_tags").Columns("topic_id", "tag_id")
	for _, id := range tagIDs {
		b = b.Values(topicID, id)
	}
	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("store: attach tags: %w", err)
	}
	return nil
}

// TopicTags returns the tag ids attached to a topic.
func (s *Store) TopicTags(ctx context.Context, topicID string) ([]string, error) {
	var ids []string
	err := s.selectRows(ctx, &ids, s.sb.Select("tag_id").From("topic_tags").
		Where(sq.Eq{"topic_id": topicID}).OrderBy("tag_id"))
	if err != nil {
		return nil, fmt.Errorf("store: topic tags: %w", err)
	}
	return ids, nil
}

// CreateTag inserts a tag.
func (s *Store) CreateTag(ctx context.Context, id, name string) error {
	if _, err := s.exec(ctx, s.sb.Insert("tags").Columns("id", "name").Values(id, name)); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: create tag: %w", err)
	}
	return nil
}

func wrapRead(op string, err error) error {
	if err == ErrNotFound {
		return err
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
