package domain

import "time"

// ReportType is the category a reporter picks for a report.
type ReportType string

const (
	ReportSpam           ReportType = "spam"
	ReportHarassment     ReportType = "harassment"
	ReportInappropriate  ReportType = "inappropriate"
	ReportMisinformation ReportType = "misinformation"
	ReportOther          ReportType = "other"
)

// Label returns the moderator-facing label of the report type.
func (t ReportType) Label() string {
	switch t {
	case ReportSpam:
		return "Spam"
	case ReportHarassment:
		return "Harassment"
	case ReportInappropriate:
		return "Inappropriate content"
	case ReportMisinformation:
		return "Misinformation"
	case ReportOther:
		return "Other"
	}
	return string(t)
}

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportSpam, ReportHarassment, ReportInappropriate, ReportMisinformation, ReportOther:
		return true
	}
	return false
}

// ReportStatus is the lifecycle state of a report. Pending is the only
// non-terminal state.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s ReportStatus) Terminal() bool {
	return s == ReportReviewed || s == ReportResolved || s == ReportDismissed
}

// Report is a user-submitted complaint about a topic or reply.
type Report struct {
	ID          string       `json:"id"`
	ReporterID  string       `json:"reporterId"`
	TargetKind  PostKind     `json:"targetKind"`
	TargetID    string       `json:"targetId"`
	Type        ReportType   `json:"reportType"`
	Description string       `json:"description,omitempty"`
	Status      ReportStatus `json:"status"`
	ReviewedBy  string       `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewedAt,omitempty"`
	AdminNotes  string       `json:"adminNotes,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}
