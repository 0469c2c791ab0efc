// Package dashboard implements the staff-facing JSON API: the pending queue,
// answer resolution, and FAQ/roster administration. It replaces a web UI and
// carries no authentication; deploy it behind a trusted network boundary.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"qnabot/internal/database"
)

// FAQRefresher rebuilds the matcher's FAQ snapshot. Every FAQ mutation made
// through this API must trigger it so the cache never serves stale entries.
type FAQRefresher interface {
	Refresh(ctx context.Context) error
}

// Handler serves the staff dashboard API.
type Handler struct {
	logger  *slog.Logger
	store   database.Store
	matcher FAQRefresher
}

// NewRouter wires the dashboard routes and middleware into an http.Handler.
func NewRouter(logger *slog.Logger, store database.Store, matcher FAQRefresher) http.Handler {
	h := &Handler{
		logger:  logger.With("component", "dashboard"),
		store:   store,
		matcher: matcher,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/questions", h.handleListQuestions)
		api.Post("/questions/{id}/resolve", h.handleResolveQuestion)
		api.Post("/questions/{id}/close", h.handleCloseQuestion)

		api.Get("/faq", h.handleListFAQ)
		api.Post("/faq", h.handleAddFAQ)
		api.Put("/faq/{id}", h.handleUpdateFAQ)
		api.Delete("/faq/{id}", h.handleDeleteFAQ)

		api.Get("/staff", h.handleListStaff)
		api.Post("/staff", h.handleAddStaff)
		api.Delete("/staff/{id}", h.handleRemoveStaff)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// questionView is the wire representation of a question.
type questionView struct {
	ID               int64  `json:"id"`
	Question         string `json:"question"`
	ChatID           int64  `json:"chat_id"`
	MessageID        int64  `json:"message_id"`
	SenderName       string `json:"sender_name,omitempty"`
	Status           string `json:"status"`
	Answer           string `json:"answer,omitempty"`
	ResolvedBy       string `json:"resolved_by,omitempty"`
	ClosedReason     string `json:"closed_reason,omitempty"`
	DeliveryAttempts int    `json:"delivery_attempts,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func toQuestionView(q *database.Question) questionView {
	return questionView{
		ID:               q.ID,
		Question:         q.Question,
		ChatID:           q.ChatID,
		MessageID:        q.MessageID,
		SenderName:       q.SenderName,
		Status:           q.Status,
		Answer:           q.Answer.String,
		ResolvedBy:       q.ResolvedBy.String,
		ClosedReason:     q.ClosedReason.String,
		DeliveryAttempts: q.DeliveryAttempts,
		LastError:        q.LastError.String,
		CreatedAt:        q.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        q.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", database.StatusPending, database.StatusAnswered, database.StatusReplied, database.StatusClosed:
	default:
		h.respondError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	questions, err := h.store.ListQuestions(r.Context(), status)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list questions", "status", status, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list questions")
		return
	}

	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, toQuestionView(q))
	}
	h.respondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleResolveQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Answer string `json:"answer"`
		Staff  string `json:"staff"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answer == "" || req.Staff == "" {
		h.respondError(w, http.StatusBadRequest, "answer and staff are required")
		return
	}

	err := h.store.ResolveQuestion(r.Context(), id, req.Answer, req.Staff)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "question not found")
		return
	case errors.Is(err, database.ErrInvalidStatus):
		h.respondError(w, http.StatusConflict, "question is not pending")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "Failed to resolve question", "question_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to resolve question")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": database.StatusAnswered})
}

func (h *Handler) handleCloseQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.store.CloseQuestion(r.Context(), id, req.Reason)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "question not found")
		return
	case errors.Is(err, database.ErrInvalidStatus):
		h.respondError(w, http.StatusConflict, "question is already closed")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "Failed to close question", "question_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to close question")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": database.StatusClosed})
}

func (h *Handler) handleListFAQ(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListFAQ(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list FAQ entries", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list FAQ entries")
		return
	}
	h.respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleAddFAQ(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" || req.Answer == "" {
		h.respondError(w, http.StatusBadRequest, "question and answer are required")
		return
	}

	id, err := h.store.AddFAQ(r.Context(), req.Question, req.Answer)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to add FAQ entry", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to add FAQ entry")
		return
	}

	h.refreshMatcher(r)
	h.respondJSON(w, http.StatusCreated, database.FAQEntry{ID: id, Question: req.Question, Answer: req.Answer})
}

func (h *Handler) handleUpdateFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" || req.Answer == "" {
		h.respondError(w, http.StatusBadRequest, "question and answer are required")
		return
	}

	err := h.store.UpdateFAQ(r.Context(), id, req.Question, req.Answer)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "FAQ entry not found")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "Failed to update FAQ entry", "faq_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to update FAQ entry")
		return
	}

	h.refreshMatcher(r)
	h.respondJSON(w, http.StatusOK, database.FAQEntry{ID: id, Question: req.Question, Answer: req.Answer})
}

func (h *Handler) handleDeleteFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	err := h.store.DeleteFAQ(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "FAQ entry not found")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "Failed to delete FAQ entry", "faq_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete FAQ entry")
		return
	}

	h.refreshMatcher(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.store.ListStaff(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list staff", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list staff")
		return
	}
	h.respondJSON(w, http.StatusOK, staff)
}

func (h *Handler) handleAddStaff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.store.AddStaff(r.Context(), req.Name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to add staff member", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to add staff member")
		return
	}

	h.respondJSON(w, http.StatusCreated, database.StaffMember{ID: id, Name: req.Name})
}

func (h *Handler) handleRemoveStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	err := h.store.RemoveStaff(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "staff member not found")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "Failed to remove staff member", "staff_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to remove staff member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// refreshMatcher rebuilds the matcher snapshot after an FAQ mutation.
// A refresh failure leaves the snapshot stale until the next mutation or
// restart; the mutation itself is already durable, so this is logged only.
func (h *Handler) refreshMatcher(r *http.Request) {
	if h.matcher == nil {
		return
	}
	if err := h.matcher.Refresh(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to refresh matcher after FAQ mutation", "error", err)
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
