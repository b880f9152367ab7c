package moderation

import "time"

// Severity is the filter's assessment of detected content.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// ContentType is the kind of post being moderated.
type ContentType string

const (
	ContentTopic ContentType = "topic"
	ContentReply ContentType = "reply"
)

// Request is the input of Filter.Moderate. Title is empty for replies.
type Request struct {
	UserID      string
	ContentType ContentType
	Title       string
	Content     string
}

// Result is the outcome of Filter.Moderate. Title and Content carry the
// censored text whether or not anything matched.
type Result struct {
	Approved bool
	Title    string
	Content  string
	Reason   string
	Severity Severity
	Terms    []string
}

// Flagged reports whether the post should be persisted as flagged.
func (r Result) Flagged() bool {
	return r.Severity != SeverityNone && r.Severity != SeverityLow
}

// FlaggedEvent is published to moderation.flagged after an auto-flagged
// post is persisted.
type FlaggedEvent struct {
	PostID   string      `json:"post_id"`
	TopicID  string      `json:"topic_id"`
	Kind     ContentType `json:"kind"`
	AuthorID string      `json:"author_id"`
	Title    string      `json:"title,omitempty"`
	Severity Severity    `json:"severity"`
	Reason   string      `json:"reason"`
	Ts       int64       `json:"ts"`
}

// NewFlaggedEvent builds the event for a persisted post.
func NewFlaggedEvent(postID, topicID string, kind ContentType, authorID, title string, res Result, at time.Time) FlaggedEvent {
	return FlaggedEvent{
		PostID:   postID,
		TopicID:  topicID,
		Kind:     kind,
		AuthorID: authorID,
		Title:    title,
		Severity: res.Severity,
		Reason:   res.Reason,
		Ts:       at.Unix(),
	}
}
