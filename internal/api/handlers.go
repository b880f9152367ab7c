package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/enforcement"
	"github.com/agora/forum/internal/identity"
	"github.com/agora/forum/internal/report"
	"github.com/agora/forum/internal/submission"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func actorID(r *http.Request) string {
	actor, _ := identity.FromContext(r.Context())
	return actor.UserID
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.health.Ping(ctx); err != nil {
		writeMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) createTopic(w http.ResponseWriter, r *http.Request) {
	var in submission.TopicInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	post, err := h.submissions.CreateTopic(r.Context(), actorID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, post)
}

func (h *handlers) createReply(w http.ResponseWriter, r *http.Request) {
	var in submission.ReplyInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.TopicID = chi.URLParam(r, "topicID")
	post, err := h.submissions.CreateReply(r.Context(), actorID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, post)
}

func (h *handlers) createReport(w http.ResponseWriter, r *http.Request) {
	var in report.CreateInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.reports.Create(r.Context(), actorID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rep)
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.inbox.ListNotifications(r.Context(), actorID(r), pageSize(r))
	if err != nil {
		h.writeError(w, r, domain.Collaborator("could not load notifications", err))
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *handlers) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.MarkNotificationsRead(r.Context(), actorID(r))
	if err != nil {
		h.writeError(w, r, domain.Collaborator("could not update notifications", err))
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	status := domain.ReportStatus(r.URL.Query().Get("status"))
	list, err := h.reports.List(r.Context(), actorID(r), status, pageSize(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *handlers) updateReport(w http.ResponseWriter, r *http.Request) {
	var rv report.Review
	if err := decode(w, r, &rv); err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.reports.UpdateStatus(r.Context(), actorID(r), chi.URLParam(r, "reportID"), rv)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rep)
}

type reasonBody struct {
	Reason        string `json:"reason"`
	DurationHours int    `json:"durationHours"`
}

func (h *handlers) warnUser(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, h.enforcement.Warn(r.Context(), actorID(r), chi.URLParam(r, "userID"), body.Reason))
}

func (h *handlers) timeoutUser(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, h.enforcement.Timeout(r.Context(), actorID(r), chi.URLParam(r, "userID"), body.Reason, body.DurationHours))
}

func (h *handlers) removeTimeout(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.enforcement.RemoveTimeout(r.Context(), actorID(r), chi.URLParam(r, "userID")))
}

func (h *handlers) banUser(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if r.ContentLength != 0 {
		if err := decode(w, r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.respond(w, r, h.enforcement.Ban(r.Context(), actorID(r), chi.URLParam(r, "userID"), body.Reason))
}

func (h *handlers) unbanUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.enforcement.Unban(r.Context(), actorID(r), chi.URLParam(r, "userID")))
}

func (h *handlers) changeRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role domain.Role `json:"role"`
	}
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, h.enforcement.ChangeRole(r.Context(), actorID(r), chi.URLParam(r, "userID"), body.Role))
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.enforcement.DeleteUser(r.Context(), actorID(r), chi.URLParam(r, "userID")))
}

func (h *handlers) listWarnings(w http.ResponseWriter, r *http.Request) {
	list, err := h.enforcement.Warnings(r.Context(), actorID(r), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *handlers) pinTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pinned bool `json:"pinned"`
	}
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, h.enforcement.PinTopic(r.Context(), actorID(r), chi.URLParam(r, "topicID"), body.Pinned))
}

func (h *handlers) lockTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Locked bool `json:"locked"`
	}
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, h.enforcement.LockTopic(r.Context(), actorID(r), chi.URLParam(r, "topicID"), body.Locked))
}

func (h *handlers) deleteTopic(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.enforcement.DeleteTopic(r.Context(), actorID(r), chi.URLParam(r, "topicID")))
}

func (h *handlers) deleteReply(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.enforcement.DeleteReply(r.Context(), actorID(r), chi.URLParam(r, "replyID")))
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, domain.Collaborator("could not load categories", err))
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	var in enforcement.CategoryInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.enforcement.CreateCategory(r.Context(), actorID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (h *handlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in enforcement.CategoryInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, h.enforcement.UpdateCategory(r.Context(), actorID(r), chi.URLParam(r, "categoryID"), in))
}

func (h *handlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.enforcement.DeleteCategory(r.Context(), actorID(r), chi.URLParam(r, "categoryID")))
}

// respond writes {success:true} or the error.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

func pageSize(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}
