package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestActiveTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	tests := []struct {
		name   string
		until  *time.Time
		active bool
	}{
		{"no timeout", nil, false},
		{"future", &future, true},
		{"past", &past, false},
		{"exactly now", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Standing{TimeoutUntil: tt.until}
			remaining, active := s.ActiveTimeout(now)
			if active != tt.active {
				t.Fatalf("ActiveTimeout() active = %v, want %v", active, tt.active)
			}
			if active && remaining != time.Hour {
				t.Errorf("ActiveTimeout() remaining = %v, want %v", remaining, time.Hour)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", Rejected("account is banned"))

	tests := []struct {
		name string
		err  error
		kind Kind
		msg  string
	}{
		{"policy", Rejected("too fast"), KindPolicy, "too fast"},
		{"wrapped policy", wrapped, KindPolicy, "account is banned"},
		{"validation", Validation("%s is required", "title"), KindValidation, "title is required"},
		{"not found", NotFound("user"), KindNotFound, "user not found"},
		{"raw error", errors.New("pq: connection refused"), KindCollaborator, "internal error"},
		{"collaborator", Collaborator("could not save post", errors.New("boom")), KindCollaborator, "could not save post"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
			if got := MessageOf(tt.err); got != tt.msg {
				t.Errorf("MessageOf() = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestReportStatusTerminal(t *testing.T) {
	if ReportPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	for _, s := range []ReportStatus{ReportReviewed, ReportResolved, ReportDismissed} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}
