package topup_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	topupPkg "github.com/thaiGO2003/DigiGO-sub000/internal/topup"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport"
)

// Mock service for exercising the handler's status mapping.
type mockTopupService struct {
	reconcileResult *topupPkg.ReconcileResult
	reconcileErr    error
	lastRequest     topupPkg.ReconcileRequest
}

func (m *mockTopupService) CreateTopup(ctx context.Context, userID string, dto topupPkg.CreateTopupDTO) (*topupPkg.TopupWithPayload, error) {
	return nil, nil
}

func (m *mockTopupService) ListForUser(userID string, limit, offset int) ([]*topupPkg.Topup, error) {
	return nil, nil
}

func (m *mockTopupService) Cancel(ctx context.Context, id int64, userID string) error {
	return nil
}

func (m *mockTopupService) Reconcile(ctx context.Context, req topupPkg.ReconcileRequest) (*topupPkg.ReconcileResult, error) {
	m.lastRequest = req
	return m.reconcileResult, m.reconcileErr
}

func (m *mockTopupService) Approve(ctx context.Context, id int64) (*topupPkg.Topup, error) {
	return nil, nil
}

func (m *mockTopupService) Reject(ctx context.Context, id int64) error {
	return nil
}

func (m *mockTopupService) ListPendingReview() ([]*topupPkg.Topup, error) {
	return nil, nil
}

var _ = Describe("WebhookHandler", func() {
	var (
		handler     *topupPkg.WebhookHandler
		mockService *mockTopupService
		recorder    *httptest.ResponseRecorder
	)

	postNotification := func(body interface{}) {
		payload, err := json.Marshal(body)
		Expect(err).ToNot(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bank/notifications", bytes.NewReader(payload))
		handler.HandleBankNotification(recorder, req)
	}

	decodeResponse := func() topupPkg.BankNotificationResponse {
		var resp topupPkg.BankNotificationResponse
		Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	BeforeEach(func() {
		mockService = &mockTopupService{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = topupPkg.NewWebhookHandler(transport.NewBaseHandler(logger), mockService, logger)
		recorder = httptest.NewRecorder()
	})

	Context("when the notification credits a topup", func() {
		It("should acknowledge with the topup id", func() {
			mockService.reconcileResult = &topupPkg.ReconcileResult{
				Topup: &topupPkg.Topup{ID: 42, Status: topupPkg.StatusCompleted},
			}

			postNotification(topupPkg.BankNotificationRequest{
				Amount:            50000,
				MemoText:          "DH55512345",
				ExternalReference: "REF1",
			})

			Expect(recorder.Code).To(Equal(http.StatusOK))
			resp := decodeResponse()
			Expect(resp.Status).To(Equal("success"))
			Expect(resp.Message).To(Equal("credited"))
			Expect(resp.TopupID).To(Equal(int64(42)))
		})
	})

	Context("when the reference was already processed", func() {
		It("should still acknowledge success so the rail stops retrying", func() {
			mockService.reconcileResult = &topupPkg.ReconcileResult{
				Topup:            &topupPkg.Topup{ID: 42, Status: topupPkg.StatusCompleted},
				AlreadyProcessed: true,
			}

			postNotification(topupPkg.BankNotificationRequest{
				Amount:            50000,
				MemoText:          "DH55512345",
				ExternalReference: "REF1",
			})

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(decodeResponse().Message).To(Equal("already processed"))
		})
	})

	Context("when no pending topup matches", func() {
		It("should hold with a non-retryable status", func() {
			mockService.reconcileErr = internal.ErrNoMatch

			postNotification(topupPkg.BankNotificationRequest{
				Amount:            50000,
				MemoText:          "unknown",
				ExternalReference: "REF1",
			})

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			Expect(decodeResponse().Status).To(Equal("held"))
		})
	})

	Context("when the match is ambiguous", func() {
		It("should hold with a conflict status", func() {
			mockService.reconcileErr = internal.ErrAmbiguousMatch

			postNotification(topupPkg.BankNotificationRequest{
				Amount:            50000,
				MemoText:          "two codes",
				ExternalReference: "REF1",
			})

			Expect(recorder.Code).To(Equal(http.StatusConflict))
			Expect(decodeResponse().Status).To(Equal("held"))
		})
	})

	Context("when crediting lost to concurrent interference", func() {
		It("should ask the rail to retry", func() {
			mockService.reconcileErr = internal.ErrConcurrentUpdate

			postNotification(topupPkg.BankNotificationRequest{
				Amount:            50000,
				MemoText:          "DH55512345",
				ExternalReference: "REF1",
			})

			Expect(recorder.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(decodeResponse().Status).To(Equal("retry"))
		})
	})

	Context("when required fields are missing", func() {
		It("should reject without calling the service", func() {
			postNotification(map[string]interface{}{"amount": 50000})

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(mockService.lastRequest).To(Equal(topupPkg.ReconcileRequest{}))
		})
	})
})
