package topup

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/thaiGO2003/DigiGO-sub000/internal"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport"
)

// WebhookHandler receives inbound transfer notifications from the bank rail.
// Delivery is at-least-once: duplicates must still get a success response so
// the upstream stops retrying.
type WebhookHandler struct {
	*transport.BaseHandler
	service ServiceAPI
	logger  *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

func (h *WebhookHandler) HandleBankNotification(w http.ResponseWriter, r *http.Request) {
	var req BankNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid bank notification", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.logger.Info("received bank notification",
		"amount", req.Amount,
		"external_reference", req.ExternalReference)

	if err := req.Validate(); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.service.Reconcile(r.Context(), ReconcileRequest{
		Amount:            req.Amount,
		MemoText:          req.MemoText,
		ExternalReference: req.ExternalReference,
	})
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			switch appErr.Code {
			case errors.ErrCodeNoMatch, errors.ErrCodeAmbiguousMatch, errors.ErrCodeTopupExpired, errors.ErrCodeAlreadyFinalized:
				// Non-retryable: the notification is held for manual review
				// (or the intent is settled/ineligible). 4xx stops upstream
				// retries.
				h.WriteJSON(w, appErr.StatusCode, BankNotificationResponse{
					Status:  "held",
					Message: appErr.Message,
				})
				return
			case errors.ErrCodeConcurrentUpdate:
				// Transient: tell the rail to retry.
				h.WriteJSON(w, http.StatusServiceUnavailable, BankNotificationResponse{
					Status:  "retry",
					Message: appErr.Message,
				})
				return
			}
		}
		h.logger.Error("bank notification processing failed",
			"error", err,
			"external_reference", req.ExternalReference)
		h.WriteJSON(w, http.StatusInternalServerError, BankNotificationResponse{
			Status:  "error",
			Message: "failed to process notification",
		})
		return
	}

	message := "credited"
	if result.AlreadyProcessed {
		message = "already processed"
	}

	h.WriteJSON(w, http.StatusOK, BankNotificationResponse{
		Status:  "success",
		Message: message,
		TopupID: result.Topup.ID,
	})
}
