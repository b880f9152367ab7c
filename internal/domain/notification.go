package domain

import "time"

// NotificationType is the closed set of notification kinds produced by the
// forum.
type NotificationType string

const (
	NotifyReply   NotificationType = "reply"
	NotifyMention NotificationType = "mention"
	NotifyReport  NotificationType = "report"
	NotifyFlagged NotificationType = "flagged"
	NotifyWarning NotificationType = "warning"
	NotifyTimeout NotificationType = "timeout"
	NotifyBan     NotificationType = "ban"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyReply, NotifyMention, NotifyReport, NotifyFlagged, NotifyWarning, NotifyTimeout, NotifyBan:
		return true
	}
	return false
}

// Notification is a message addressed to one user.
type Notification struct {
	ID        string           `json:"id,omitempty"`
	UserID    string           `json:"userId,omitempty"`
	ActorID   string           `json:"actorId,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	TopicID   string           `json:"topicId,omitempty"`
	ReplyID   string           `json:"replyId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
