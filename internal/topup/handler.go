package topup

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	service ServiceAPI
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// CreateTopup handles POST /topups.
func (h *Handler) CreateTopup(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	var dto CreateTopupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.Error("invalid create topup request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.CreateTopup(r.Context(), userID, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}

// ListTopups handles GET /topups for the current user.
func (h *Handler) ListTopups(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	limit, offset := paginationParams(r)
	topups, err := h.service.ListForUser(userID, limit, offset)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"topups": topups})
}

// CancelTopup handles POST /topups/{id}/cancel.
func (h *Handler) CancelTopup(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	id, err := topupIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid topup id")
		return
	}

	if err := h.service.Cancel(r.Context(), id, userID); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ApproveTopup handles PATCH /admin/topups/{id}/approve. Same state machine
// as the webhook path, just a different source.
func (h *Handler) ApproveTopup(w http.ResponseWriter, r *http.Request) {
	id, err := topupIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid topup id")
		return
	}

	result, err := h.service.Approve(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.logger.Info("topup approved by admin",
		"topup_id", id,
		"admin_id", internal.UserIDFromContext(r.Context()))
	h.WriteJSON(w, http.StatusOK, result)
}

// RejectTopup handles PATCH /admin/topups/{id}/reject.
func (h *Handler) RejectTopup(w http.ResponseWriter, r *http.Request) {
	id, err := topupIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid topup id")
		return
	}

	if err := h.service.Reject(r.Context(), id); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.logger.Info("topup rejected by admin",
		"topup_id", id,
		"admin_id", internal.UserIDFromContext(r.Context()))
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// ListPendingTopups handles GET /admin/topups/pending, the manual-review
// queue of still-eligible pending top-ups.
func (h *Handler) ListPendingTopups(w http.ResponseWriter, r *http.Request) {
	topups, err := h.service.ListPendingReview()
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"topups": topups})
}

func topupIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
