// Package submission runs new topics and replies through the moderation
// pipeline and persists the ones that pass.
//
// Stages run in a fixed order and the first rejection ends the attempt:
//
//  1. author standing (ban, active timeout)
//  2. required fields, length limits, category and topic lookups
//  3. spam classifier on title and content
//  4. duplicate and rapid-posting detection over the author's recent posts
//  5. profanity filter (censors; a high severity match rejects)
//  6. persist
//
// Tags, mentions, reply notifications and the flagged event run after the
// post is stored and never undo it.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/metrics"
	"github.com/agora/forum/internal/moderation"
	"github.com/agora/forum/internal/store"
)

const (
	maxTitleLength   = 200
	maxContentLength = 10000
	maxTags          = 5
	maxMentions      = 10
)

// Store is the persistence the pipeline reads and writes.
type Store interface {
	GetStanding(ctx context.Context, userID string) (*domain.Standing, error)
	FindByUsernames(ctx context.Context, names []string) ([]domain.Standing, error)
	CategoryExists(ctx context.Context, id string) (bool, error)
	GetTopic(ctx context.Context, id string) (*domain.Post, error)
	GetReply(ctx context.Context, id string) (*domain.Post, error)
	RecentTopics(ctx context.Context, authorID string, limit int) ([]domain.Post, error)
	RecentReplies(ctx context.Context, authorID string, limit int) ([]domain.Post, error)
	InsertTopic(ctx context.Context, p *domain.Post) error
	InsertReply(ctx context.Context, p *domain.Post) error
	AttachTags(ctx context.Context, topicID string, tagIDs []string) error
}

// Notifier delivers a notification to one user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventPublisher emits moderation.flagged events. *messaging.NATSClient
// implements it.
type EventPublisher interface {
	PublishFlagged(data []byte) error
}

// Limits bounds how often one author may post a kind of content.
type Limits struct {
	MaxPerMinute    int
	DuplicateWindow time.Duration
}

// Config holds the pipeline thresholds.
type Config struct {
	Topic        Limits
	Reply        Limits
	RecentWindow int // recent posts fetched per check
	Spam         moderation.SpamConfig
}

// DefaultConfig returns the production thresholds: topics 2 per minute with
// a 10 minute duplicate window, replies 5 per minute with 5 minutes.
func DefaultConfig() Config {
	return Config{
		Topic:        Limits{MaxPerMinute: 2, DuplicateWindow: 10 * time.Minute},
		Reply:        Limits{MaxPerMinute: 5, DuplicateWindow: 5 * time.Minute},
		RecentWindow: 10,
		Spam:         moderation.DefaultSpamConfig(),
	}
}

// TopicInput is a new topic as submitted.
type TopicInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CategoryID string   `json:"categoryId"`
	TagIDs     []string `json:"tagIds"`
}

// ReplyInput is a new reply as submitted.
type ReplyInput struct {
	TopicID       string `json:"topicId"`
	ParentReplyID string `json:"parentReplyId"`
	Content       string `json:"content"`
}

// Service is the submission orchestrator.
type Service struct {
	store      Store
	notifier   Notifier
	events     EventPublisher
	classifier *moderation.Classifier
	filter     *moderation.Filter
	cfg        Config
	logger     *zap.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewService returns a Service. events may be nil when NATS is not
// configured.
func NewService(st Store, notifier Notifier, events EventPublisher, filter *moderation.Filter, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:      st,
		notifier:   notifier,
		events:     events,
		classifier: moderation.NewClassifier(cfg.Spam),
		filter:     filter,
		cfg:        cfg,
		logger:     logger.Named("submission"),
		Now:        time.Now,
	}
}

// CreateTopic runs a new topic through the pipeline and stores it.
func (s *Service) CreateTopic(ctx context.Context, userID string, in TopicInput) (post *domain.Post, err error) {
	start := time.Now()
	defer func() { observe(domain.KindTopic, post, err, start) }()

	author, err := s.checkStanding(ctx, userID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	tags, err := s.validateTopic(ctx, title, content, in.CategoryID, in.TagIDs)
	if err != nil {
		return nil, err
	}

	if err := s.checkSpam(title, content); err != nil {
		return nil, err
	}

	recent, err := s.store.RecentTopics(ctx, userID, s.cfg.RecentWindow)
	if err != nil {
		return nil, domain.Collaborator("could not check recent posts", err)
	}
	if err := s.checkHistory(moderation.RecentText(title, content), recent, s.cfg.Topic); err != nil {
		return nil, err
	}

	res := s.filter.Moderate(moderation.Request{
		UserID:      userID,
		ContentType: moderation.ContentTopic,
		Title:       title,
		Content:     content,
	})
	if !res.Approved {
		return nil, domain.Rejected("%s", res.Reason)
	}

	id := uuid.NewString()
	post = &domain.Post{
		ID:               id,
		Kind:             domain.KindTopic,
		AuthorID:         userID,
		CategoryID:       in.CategoryID,
		TopicID:          id,
		Title:            res.Title,
		Slug:             Slugify(res.Title, id),
		Content:          res.Content,
		ModerationStatus: statusOf(res),
		AutoFlagged:      res.Severity != moderation.SeverityNone,
		CreatedAt:        s.Now().UTC(),
	}
	if err := s.store.InsertTopic(ctx, post); err != nil {
		s.logger.Error("insert topic", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.Collaborator("could not save topic", err)
	}

	if len(tags) > 0 {
		if err := s.store.AttachTags(ctx, id, tags); err != nil {
			metrics.NotificationFailures.WithLabelValues("tags").Inc()
			s.logger.Warn("attach tags", zap.String("topic_id", id), zap.Error(err))
		}
	}
	s.notifyMentions(ctx, author, post)
	s.publishFlagged(post, res)
	return post, nil
}

// CreateReply runs a new reply through the pipeline and stores it.
func (s *Service) CreateReply(ctx context.Context, userID string, in ReplyInput) (post *domain.Post, err error) {
	start := time.Now()
	defer func() { observe(domain.KindReply, post, err, start) }()

	author, err := s.checkStanding(ctx, userID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	topic, err := s.validateReply(ctx, in.TopicID, in.ParentReplyID, content)
	if err != nil {
		return nil, err
	}

	if err := s.checkSpam("", content); err != nil {
		return nil, err
	}

	recent, err := s.store.RecentReplies(ctx, userID, s.cfg.RecentWindow)
	if err != nil {
		return nil, domain.Collaborator("could not check recent posts", err)
	}
	if err := s.checkHistory(content, recent, s.cfg.Reply); err != nil {
		return nil, err
	}

	res := s.filter.Moderate(moderation.Request{
		UserID:      userID,
		ContentType: moderation.ContentReply,
		Content:     content,
	})
	if !res.Approved {
		return nil, domain.Rejected("%s", res.Reason)
	}

	post = &domain.Post{
		ID:               uuid.NewString(),
		Kind:             domain.KindReply,
		AuthorID:         userID,
		TopicID:          topic.ID,
		ParentReplyID:    in.ParentReplyID,
		Content:          res.Content,
		ModerationStatus: statusOf(res),
		AutoFlagged:      res.Severity != moderation.SeverityNone,
		CreatedAt:        s.Now().UTC(),
	}
	if err := s.store.InsertReply(ctx, post); err != nil {
		s.logger.Error("insert reply", zap.String("user_id", userID), zap.String("topic_id", topic.ID), zap.Error(err))
		return nil, domain.Collaborator("could not save reply", err)
	}

	if topic.AuthorID != userID {
		s.notify(ctx, domain.Notification{
			UserID:  topic.AuthorID,
			ActorID: userID,
			Type:    domain.NotifyReply,
			Title:   "New reply to your topic",
			Message: fmt.Sprintf("%s replied to %q", author.Username, topic.Title),
			Link:    topicLink(topic.ID),
			TopicID: topic.ID,
			ReplyID: post.ID,
		}, "reply")
	}
	s.notifyMentions(ctx, author, post)
	s.publishFlagged(post, res)
	return post, nil
}

// checkStanding is stage 1.
func (s *Service) checkStanding(ctx context.Context, userID string) (*domain.Standing, error) {
	if userID == "" {
		return nil, domain.Unauthenticated()
	}
	st, err := s.store.GetStanding(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound("user")
	}
	if err != nil {
		return nil, domain.Collaborator("could not load user", err)
	}
	if st.IsBanned {
		return nil, domain.Rejected("account is banned")
	}
	if remaining, ok := st.ActiveTimeout(s.Now()); ok {
		reason := st.TimeoutReason
		if reason == "" {
			reason = "not specified"
		}
		minutes := int(math.Ceil(remaining.Minutes()))
		return nil, domain.Rejected("timeout remaining %d minutes, reason: %s", minutes, reason)
	}
	return st, nil
}

// validateTopic is stage 2 for topics. It returns the deduplicated tag ids.
func (s *Service) validateTopic(ctx context.Context, title, content, categoryID string, tagIDs []string) ([]string, error) {
	if title == "" {
		return nil, domain.Validation("title is required")
	}
	if content == "" {
		return nil, domain.Validation("content is required")
	}
	if categoryID == "" {
		return nil, domain.Validation("category is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, domain.Validation("title must be at most %d characters", maxTitleLength)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, domain.Validation("content must be at most %d characters", maxContentLength)
	}
	tags := dedupe(tagIDs)
	if len(tags) > maxTags {
		return nil, domain.Validation("at most %d tags are allowed", maxTags)
	}
	ok, err := s.store.CategoryExists(ctx, categoryID)
	if err != nil {
		return nil, domain.Collaborator("could not load category", err)
	}
	if !ok {
		return nil, domain.NotFound("category")
	}
	return tags, nil
}

// validateReply is stage 2 for replies. It returns the parent topic.
func (s *Service) validateReply(ctx context.Context, topicID, parentReplyID, content string) (*domain.Post, error) {
	if content == "" {
		return nil, domain.Validation("content is required")
	}
	if topicID == "" {
		return nil, domain.Validation("topic is required")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, domain.Validation("content must be at most %d characters", maxContentLength)
	}
	topic, err := s.store.GetTopic(ctx, topicID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound("topic")
	}
	if err != nil {
		return nil, domain.Collaborator("could not load topic", err)
	}
	if topic.Locked {
		return nil, domain.Rejected("topic is locked")
	}
	if parentReplyID != "" {
		parent, err := s.store.GetReply(ctx, parentReplyID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && parent.TopicID != topic.ID) {
			return nil, domain.NotFound("parent reply")
		}
		if err != nil {
			return nil, domain.Collaborator("could not load parent reply", err)
		}
	}
	return topic, nil
}

// checkSpam is stage 3. title is empty for replies.
func (s *Service) checkSpam(title, content string) error {
	if title != "" {
		if v := s.classifier.Classify(title); v.IsSpam {
			return domain.Rejected("title flagged as spam: %s", v.Reason)
		}
	}
	if v := s.classifier.Classify(content); v.IsSpam {
		return domain.Rejected("content flagged as spam: %s", v.Reason)
	}
	return nil
}

// checkHistory is stage 4.
func (s *Service) checkHistory(candidate string, posts []domain.Post, limits Limits) error {
	recent := make([]moderation.RecentPost, 0, len(posts))
	for _, p := range posts {
		recent = append(recent, moderation.RecentPost{
			Text:      moderation.RecentText(p.Title, p.Content),
			CreatedAt: p.CreatedAt,
		})
	}
	now := s.Now()
	if v := moderation.DetectDuplicate(candidate, recent, limits.DuplicateWindow, now); v.IsSpam {
		return domain.Rejected("%s", v.Reason)
	}
	if v := moderation.DetectRapidPosting(recent, limits.MaxPerMinute, now); v.IsSpam {
		return domain.Rejected("%s", v.Reason)
	}
	return nil
}

func (s *Service) notifyMentions(ctx context.Context, author *domain.Standing, post *domain.Post) {
	names := Mentions(post.Content, maxMentions)
	if len(names) == 0 {
		return
	}
	users, err := s.store.FindByUsernames(ctx, names)
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("mentions").Inc()
		s.logger.Warn("resolve mentions", zap.String("post_id", post.ID), zap.Error(err))
		return
	}
	n := domain.Notification{
		ActorID: author.UserID,
		Type:    domain.NotifyMention,
		Title:   "You were mentioned",
		Message: fmt.Sprintf("%s mentioned you in a %s", author.Username, post.Kind),
		Link:    topicLink(post.TopicID),
		TopicID: post.TopicID,
	}
	if post.Kind == domain.KindReply {
		n.ReplyID = post.ID
	}
	for _, u := range users {
		if u.UserID == author.UserID {
			continue
		}
		n.UserID = u.UserID
		s.notify(ctx, n, "mentions")
	}
}

func (s *Service) notify(ctx context.Context, n domain.Notification, path string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues(path).Inc()
		s.logger.Warn("notify",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

func (s *Service) publishFlagged(post *domain.Post, res moderation.Result) {
	if s.events == nil || !res.Flagged() {
		return
	}
	ev := moderation.NewFlaggedEvent(post.ID, post.TopicID, moderation.ContentType(post.Kind),
		post.AuthorID, post.Title, res, post.CreatedAt)
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("marshal flagged event", zap.String("post_id", post.ID), zap.Error(err))
		return
	}
	if err := s.events.PublishFlagged(data); err != nil {
		metrics.NotificationFailures.WithLabelValues("publish").Inc()
		s.logger.Warn("publish flagged event", zap.String("post_id", post.ID), zap.Error(err))
	}
}

func statusOf(res moderation.Result) domain.ModerationStatus {
	if res.Flagged() {
		return domain.StatusFlagged
	}
	return domain.StatusApproved
}

func topicLink(topicID string) string {
	return "/forum/topic/" + topicID
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func observe(kind domain.PostKind, post *domain.Post, err error, start time.Time) {
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	outcome := "created"
	switch {
	case err != nil && domain.KindOf(err) == domain.KindCollaborator:
		outcome = "error"
	case err != nil:
		outcome = "rejected_" + domain.KindOf(err).String()
	case post.ModerationStatus == domain.StatusFlagged:
		outcome = "flagged"
	}
	metrics.SubmissionsTotal.WithLabelValues(string(kind), outcome).Inc()
}
