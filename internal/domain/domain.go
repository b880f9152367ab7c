// Package domain holds the forum entities shared by the moderation
// pipeline, the report lifecycle and the enforcement actions, together with
// the closed enumerations used to branch on them.
package domain

import "time"

// Role is a user's forum role.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// PostKind distinguishes topics from replies. It doubles as the report
// target kind.
type PostKind string

const (
	KindTopic PostKind = "topic"
	KindReply PostKind = "reply"
)

// Valid reports whether k is a known post kind.
func (k PostKind) Valid() bool {
	return k == KindTopic || k == KindReply
}

// Category groups topics on the forum index. OrderIndex sets the display
// order; new categories are appended after the current maximum.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	OrderIndex  int       `json:"orderIndex"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ModerationStatus is the persisted review classification of a post.
type ModerationStatus string

const (
	StatusApproved ModerationStatus = "approved"
	StatusFlagged  ModerationStatus = "flagged"
)

// Post is a topic or a reply.
type Post struct {
	ID               string           `json:"id"`
	Kind             PostKind         `json:"kind"`
	AuthorID         string           `json:"authorId"`
	CategoryID       string           `json:"categoryId,omitempty"`
	TopicID          string           `json:"topicId,omitempty"`
	ParentReplyID    string           `json:"parentReplyId,omitempty"`
	Title            string           `json:"title,omitempty"`
	Slug             string           `json:"slug,omitempty"`
	Content          string           `json:"content"`
	Pinned           bool             `json:"pinned,omitempty"`
	Locked           bool             `json:"locked,omitempty"`
	ModerationStatus ModerationStatus `json:"moderationStatus"`
	AutoFlagged      bool             `json:"autoFlagged"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Standing is the moderation state of a user account.
type Standing struct {
	UserID        string     `json:"userId"`
	Username      string     `json:"username"`
	Role          Role       `json:"role"`
	IsBanned      bool       `json:"isBanned"`
	BannedAt      *time.Time `json:"bannedAt,omitempty"`
	BanReason     string     `json:"banReason,omitempty"`
	BannedBy      string     `json:"bannedBy,omitempty"`
	WarningCount  int        `json:"warningCount"`
	LastWarningAt *time.Time `json:"lastWarningAt,omitempty"`
	TimeoutUntil  *time.Time `json:"timeoutUntil,omitempty"`
	TimeoutReason string     `json:"timeoutReason,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (s *Standing) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// ActiveTimeout returns the remaining timeout at now. A timeoutUntil in the
// past is the same as no timeout.
func (s *Standing) ActiveTimeout(now time.Time) (time.Duration, bool) {
	if s.TimeoutUntil == nil {
		return 0, false
	}
	remaining := s.TimeoutUntil.Sub(now)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// WarningType is the kind of a WarningRecord.
type WarningType string

const (
	WarningPlain   WarningType = "warning"
	WarningTimeout WarningType = "timeout"
)

// WarningRecord is an append-only audit entry written by warn and timeout.
type WarningRecord struct {
	ID                   string      `json:"id"`
	UserID               string      `json:"userId"`
	AdminID              string      `json:"adminId"`
	Reason               string      `json:"reason"`
	Type                 WarningType `json:"type"`
	TimeoutDurationHours *int        `json:"timeoutDurationHours,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
}
