package purchase

import (
	"encoding/json"
	"log/slog"
	"net/http"

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

// CreatePurchase handles POST /purchases.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	var dto CreatePurchaseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.Error("invalid create purchase request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.CreatePurchase(r.Context(), userID, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}
