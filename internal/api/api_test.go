package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/enforcement"
	"github.com/agora/forum/internal/identity"
	"github.com/agora/forum/internal/moderation"
	"github.com/agora/forum/internal/notify"
	"github.com/agora/forum/internal/report"
	"github.com/agora/forum/internal/store"
	"github.com/agora/forum/internal/submission"
)

const secret = "api-test-secret-0123456789"

type testServer struct {
	handler http.Handler
	store   *store.Store
	tokens  map[string]string
}

// newTestServer wires the full stack over a migrated SQLite database with
// users "student" (ana), "other" (marko), "admin" (ivana) and category "c1".
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "forum.db")
	if err := store.MigrateUp(url); err != nil {
		t.Fatalf("MigrateUp() error: %v", err)
	}
	st, err := store.Open(ctx, url, 1)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	users := []struct {
		id, name string
		role     domain.Role
	}{
		{"student", "ana", domain.RoleStudent},
		{"other", "marko", domain.RoleStudent},
		{"admin", "ivana", domain.RoleAdmin},
	}
	issuer := identity.NewIssuer(secret)
	tokens := map[string]string{}
	for _, u := range users {
		if err := st.CreateProfile(ctx, u.id, u.name, u.role); err != nil {
			t.Fatalf("CreateProfile(%s) error: %v", u.id, err)
		}
		tok, err := issuer.Issue(u.id, time.Hour)
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		tokens[u.id] = tok
	}
	if err := st.CreateCategory(ctx, &domain.Category{ID: "c1", Name: "Matematika", Slug: "matematika"}); err != nil {
		t.Fatalf("CreateCategory() error: %v", err)
	}

	logger := zap.NewNop()
	sink := notify.NewSink(st, nil, logger)
	filter := moderation.NewFilterWithTerms([]moderation.Term{{Text: "idiot", Severity: moderation.SeverityMedium}})

	handler := NewRouter(Deps{
		Submissions: submission.NewService(st, sink, nil, filter, submission.DefaultConfig(), logger),
		Reports:     report.NewService(report.NewRepository(st), notify.NewDirectGroup(st, sink), logger),
		Enforcement: enforcement.NewService(enforcement.NewRepository(st), sink, logger),
		Inbox:       st,
		Catalog:     st,
		Health:      st,
		Verifier:    identity.NewVerifier(secret),
		Logger:      logger,
	})
	return &testServer{handler: handler, store: st, tokens: tokens}
}

// do sends a request as user (empty for anonymous) and decodes the
// envelope.
func (s *testServer) do(t *testing.T, user, method, path string, body any) (int, Response) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
		rd = &buf
	}
	req := httptest.NewRequest(method, path, rd)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: response is not JSON: %q", method, path, rec.Body.String())
	}
	return rec.Code, resp
}

// createTopic posts a topic as user and returns its id.
func (s *testServer) createTopic(t *testing.T, user, title, content string) string {
	t.Helper()
	code, resp := s.do(t, user, "POST", "/api/topics", map[string]any{
		"title": title, "content": content, "categoryId": "c1",
	})
	if code != http.StatusCreated || !resp.Success {
		t.Fatalf("POST /api/topics = %d %+v", code, resp)
	}
	return resp.Data.(map[string]any)["id"].(string)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	if code, resp := s.do(t, "", "GET", "/healthz", nil); code != http.StatusOK || !resp.Success {
		t.Errorf("GET /healthz = %d %+v", code, resp)
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(t, "", "POST", "/api/topics", map[string]any{"title": "t", "content": "c", "categoryId": "c1"})
	if code != http.StatusUnauthorized || resp.Success || resp.Error != "authentication required" {
		t.Errorf("anonymous POST /api/topics = %d %+v", code, resp)
	}
}

func TestCreateTopicAndReply(t *testing.T) {
	s := newTestServer(t)
	topicID := s.createTopic(t, "other", "Ispit", "Kada je rok?")

	code, resp := s.do(t, "student", "POST", "/api/topics/"+topicID+"/replies", map[string]any{"content": "ti si idiot"})
	if code != http.StatusCreated {
		t.Fatalf("POST reply = %d %+v", code, resp)
	}
	post := resp.Data.(map[string]any)
	if post["content"] != "ti si ****" || post["moderationStatus"] != "flagged" || post["autoFlagged"] != true {
		t.Errorf("reply = %+v", post)
	}

	// The topic author has a reply notification.
	code, resp = s.do(t, "other", "GET", "/api/notifications", nil)
	if code != http.StatusOK {
		t.Fatalf("GET /api/notifications = %d", code)
	}
	list := resp.Data.([]any)
	if len(list) != 1 || list[0].(map[string]any)["type"] != "reply" {
		t.Errorf("notifications = %+v", list)
	}
	code, resp = s.do(t, "other", "POST", "/api/notifications/read", nil)
	if code != http.StatusOK || resp.Data.(map[string]any)["updated"] != float64(1) {
		t.Errorf("POST /api/notifications/read = %d %+v", code, resp)
	}
}

func TestSubmissionRejections(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		path string
		body map[string]any
		code int
		msg  string
	}{
		{"spam title", "/api/topics", map[string]any{
			"title": "Buy cheap http://a http://b http://c http://d now!!!", "content": "Great deal!", "categoryId": "c1",
		}, http.StatusUnprocessableEntity, "title flagged as spam: too many links"},
		{"missing title", "/api/topics", map[string]any{"content": "c", "categoryId": "c1"}, http.StatusBadRequest, "title is required"},
		{"unknown topic", "/api/topics/nope/replies", map[string]any{"content": "c"}, http.StatusNotFound, "topic not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := s.do(t, "student", "POST", tt.path, tt.body)
			if code != tt.code || resp.Error != tt.msg {
				t.Errorf("POST %s = %d %q, want %d %q", tt.path, code, resp.Error, tt.code, tt.msg)
			}
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/topics", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+s.tokens["student"])
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestEnforcementFlow(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, "student", "POST", "/api/admin/users/other/ban", map[string]any{"reason": "x"})
	if code != http.StatusForbidden || resp.Error != "admin role required" {
		t.Errorf("student ban = %d %+v", code, resp)
	}
	code, resp = s.do(t, "admin", "POST", "/api/admin/users/admin/warn", map[string]any{"reason": "x"})
	if code != http.StatusForbidden {
		t.Errorf("self warn = %d %+v", code, resp)
	}

	code, resp = s.do(t, "admin", "POST", "/api/admin/users/student/timeout", map[string]any{"reason": "flooding", "durationHours": 1})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("timeout = %d %+v", code, resp)
	}
	code, resp = s.do(t, "student", "POST", "/api/topics", map[string]any{"title": "t", "content": "c", "categoryId": "c1"})
	if code != http.StatusUnprocessableEntity || resp.Error != "timeout remaining 60 minutes, reason: flooding" {
		t.Errorf("post while timed out = %d %q", code, resp.Error)
	}

	code, _ = s.do(t, "admin", "DELETE", "/api/admin/users/student/timeout", nil)
	if code != http.StatusOK {
		t.Fatalf("remove timeout = %d", code)
	}
	code, _ = s.do(t, "admin", "POST", "/api/admin/users/student/ban", nil)
	if code != http.StatusOK {
		t.Fatalf("ban without body = %d", code)
	}
	code, resp = s.do(t, "student", "POST", "/api/topics", map[string]any{"title": "t", "content": "c", "categoryId": "c1"})
	if code != http.StatusUnprocessableEntity || resp.Error != "account is banned" {
		t.Errorf("post while banned = %d %q", code, resp.Error)
	}

	code, resp = s.do(t, "admin", "GET", "/api/admin/users/student/warnings", nil)
	if code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Errorf("warnings = %d %+v", code, resp)
	}

	code, _ = s.do(t, "admin", "PUT", "/api/admin/users/admin/role", map[string]any{"role": "student"})
	if code != http.StatusForbidden {
		t.Errorf("self demotion = %d, want 403", code)
	}
	code, _ = s.do(t, "admin", "DELETE", "/api/admin/users/other", nil)
	if code != http.StatusOK {
		t.Errorf("delete user = %d", code)
	}
	code, _ = s.do(t, "admin", "DELETE", "/api/admin/users/other", nil)
	if code != http.StatusNotFound {
		t.Errorf("delete missing user = %d, want 404", code)
	}
}

func TestReportFlow(t *testing.T) {
	s := newTestServer(t)
	topicID := s.createTopic(t, "other", "Prodajem skripte", "Javite se")

	body := map[string]any{"targetKind": "topic", "targetId": topicID, "reportType": "spam"}
	code, resp := s.do(t, "student", "POST", "/api/reports", body)
	if code != http.StatusCreated {
		t.Fatalf("POST /api/reports = %d %+v", code, resp)
	}
	reportID := resp.Data.(map[string]any)["id"].(string)

	code, resp = s.do(t, "student", "POST", "/api/reports", body)
	if code != http.StatusUnprocessableEntity || resp.Error != "already reported" {
		t.Errorf("duplicate report = %d %q", code, resp.Error)
	}

	// The admin was notified through the moderator group.
	_, resp = s.do(t, "admin", "GET", "/api/notifications", nil)
	if list := resp.Data.([]any); len(list) != 1 || list[0].(map[string]any)["title"] != "New report: Spam" {
		t.Errorf("admin notifications = %+v", resp.Data)
	}

	code, resp = s.do(t, "admin", "GET", "/api/admin/reports?status=pending", nil)
	if code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Fatalf("GET reports = %d %+v", code, resp)
	}

	code, resp = s.do(t, "admin", "PATCH", "/api/admin/reports/"+reportID, map[string]any{
		"status": "resolved", "deleteContent": true, "adminNotes": "oglas",
	})
	if code != http.StatusOK || resp.Data.(map[string]any)["status"] != "resolved" {
		t.Fatalf("PATCH report = %d %+v", code, resp)
	}
	if _, err := s.store.GetTopic(context.Background(), topicID); err != store.ErrNotFound {
		t.Errorf("GetTopic() after resolve error = %v, want ErrNotFound", err)
	}

	code, resp = s.do(t, "admin", "PATCH", "/api/admin/reports/"+reportID, map[string]any{"status": "dismissed"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("second transition = %d %+v", code, resp)
	}
}

func TestContentAdmin(t *testing.T) {
	s := newTestServer(t)
	topicID := s.createTopic(t, "other", "Ispit", "Kada?")

	if code, _ := s.do(t, "admin", "PUT", "/api/admin/topics/"+topicID+"/lock", map[string]any{"locked": true}); code != http.StatusOK {
		t.Fatalf("lock = %d", code)
	}
	code, resp := s.do(t, "student", "POST", "/api/topics/"+topicID+"/replies", map[string]any{"content": "hej"})
	if code != http.StatusUnprocessableEntity || resp.Error != "topic is locked" {
		t.Errorf("reply to locked topic = %d %q", code, resp.Error)
	}
	if code, _ := s.do(t, "admin", "PUT", "/api/admin/topics/"+topicID+"/pin", map[string]any{"pinned": true}); code != http.StatusOK {
		t.Errorf("pin = %d", code)
	}
	if code, _ := s.do(t, "admin", "DELETE", "/api/admin/topics/"+topicID, nil); code != http.StatusOK {
		t.Errorf("delete topic = %d", code)
	}
	if code, _ := s.do(t, "admin", "DELETE", "/api/admin/replies/nope", nil); code != http.StatusNotFound {
		t.Errorf("delete missing reply = %d, want 404", code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		code int
	}{
		{domain.KindValidation, 400},
		{domain.KindPolicy, 422},
		{domain.KindUnauthorized, 401},
		{domain.KindForbidden, 403},
		{domain.KindNotFound, 404},
		{domain.KindCollaborator, 500},
	}
	for _, tt := range tests {
		if got := statusOf(tt.kind); got != tt.code {
			t.Errorf("statusOf(%v) = %d, want %d", tt.kind, got, tt.code)
		}
	}
}

func TestCategoryAdmin(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, "student", "POST", "/api/admin/categories", map[string]any{"name": "Fizika", "slug": "fizika"})
	if code != http.StatusForbidden {
		t.Errorf("student create = %d %+v", code, resp)
	}

	code, resp = s.do(t, "admin", "POST", "/api/admin/categories", map[string]any{
		"name": "Fizika", "slug": "fizika", "description": "Mehanika i optika", "color": "#336699",
	})
	if code != http.StatusCreated {
		t.Fatalf("create category = %d %+v", code, resp)
	}
	created := resp.Data.(map[string]any)
	categoryID := created["id"].(string)
	if created["orderIndex"] != float64(2) {
		t.Errorf("orderIndex = %v, want 2", created["orderIndex"])
	}

	// The new category takes topics straight away.
	code, resp = s.do(t, "student", "POST", "/api/topics", map[string]any{
		"title": "Kolokvij iz mehanike", "content": "Ima li netko stare rokove?", "categoryId": categoryID,
	})
	if code != http.StatusCreated {
		t.Fatalf("topic in new category = %d %+v", code, resp)
	}

	code, resp = s.do(t, "admin", "POST", "/api/admin/categories", map[string]any{"name": "Fizika 2", "slug": "fizika"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate slug = %d %+v", code, resp)
	}

	code, _ = s.do(t, "admin", "PUT", "/api/admin/categories/"+categoryID, map[string]any{"name": "Fizika i astronomija", "slug": "fizika"})
	if code != http.StatusOK {
		t.Errorf("update category = %d", code)
	}

	code, resp = s.do(t, "student", "GET", "/api/categories", nil)
	list, _ := resp.Data.([]any)
	if code != http.StatusOK || len(list) != 2 || list[1].(map[string]any)["name"] != "Fizika i astronomija" {
		t.Errorf("GET /api/categories = %d %+v", code, resp)
	}

	code, resp = s.do(t, "admin", "DELETE", "/api/admin/categories/"+categoryID, nil)
	if code != http.StatusUnprocessableEntity || resp.Error != "category still has topics" {
		t.Errorf("delete non-empty category = %d %q", code, resp.Error)
	}
	code, _ = s.do(t, "admin", "DELETE", "/api/admin/categories/nope", nil)
	if code != http.StatusNotFound {
		t.Errorf("delete missing category = %d, want 404", code)
	}
}
