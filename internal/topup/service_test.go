package topup_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	topupDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/topup"
	"github.com/thaiGO2003/DigiGO-sub000/internal/core/events"
	topupPkg "github.com/thaiGO2003/DigiGO-sub000/internal/topup"
)

func TestTopup(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Topup Suite")
}

// Mock repository for testing. Balances are tracked so credit idempotency is
// observable.
type mockTopupRepository struct {
	mu       sync.Mutex
	topups   map[int64]*topupDatamodel.Topup
	balances map[string]int64
	nextID   int64

	createError error
	creditError error
	listError   error
}

func newMockTopupRepository() *mockTopupRepository {
	return &mockTopupRepository{
		topups:   make(map[int64]*topupDatamodel.Topup),
		balances: make(map[string]int64),
		nextID:   1,
	}
}

func (m *mockTopupRepository) CreatePending(t *topupDatamodel.Topup, maxPending int, pendingSince time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createError != nil {
		return m.createError
	}

	pending := 0
	for _, existing := range m.topups {
		if existing.UserID == t.UserID && existing.Status == topupDatamodel.StatusPending && existing.CreatedAt.After(pendingSince) {
			pending++
		}
	}
	if pending >= maxPending {
		return internal.ErrTooManyPendingTopups
	}

	t.ID = m.nextID
	m.nextID++
	m.topups[t.ID] = t
	return nil
}

func (m *mockTopupRepository) GetByID(id int64) (*topupDatamodel.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topups[id]
	if !ok {
		return nil, internal.ErrTopupNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *mockTopupRepository) GetByExternalReference(ref string) (*topupDatamodel.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.topups {
		if t.ExternalReference != nil && *t.ExternalReference == ref {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockTopupRepository) GetByUserID(userID string, limit, offset int) ([]*topupDatamodel.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*topupDatamodel.Topup
	for _, t := range m.topups {
		if t.UserID == userID {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockTopupRepository) ListPending(pendingSince time.Time) ([]*topupDatamodel.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listError != nil {
		return nil, m.listError
	}

	var result []*topupDatamodel.Topup
	for _, t := range m.topups {
		if t.Status == topupDatamodel.StatusPending && t.CreatedAt.After(pendingSince) {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockTopupRepository) ListRecent(createdSince time.Time) ([]*topupDatamodel.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*topupDatamodel.Topup
	for _, t := range m.topups {
		if t.CreatedAt.After(createdSince) {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockTopupRepository) MemoCodeInUse(code string, pendingSince time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.topups {
		if t.MemoCode == code && t.Status == topupDatamodel.StatusPending && t.CreatedAt.After(pendingSince) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTopupRepository) Credit(id int64, externalRef *string, completedAt, pendingSince time.Time) (*topupDatamodel.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creditError != nil {
		return nil, m.creditError
	}

	t, ok := m.topups[id]
	if !ok {
		return nil, nil
	}
	if t.Status != topupDatamodel.StatusPending || !t.CreatedAt.After(pendingSince) {
		return nil, nil
	}

	t.Status = topupDatamodel.StatusCompleted
	t.CompletedAt = &completedAt
	t.ExternalReference = externalRef
	m.balances[t.UserID] += t.Amount

	copied := *t
	return &copied, nil
}

func (m *mockTopupRepository) MarkFailed(id int64, failedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topups[id]
	if !ok || t.Status != topupDatamodel.StatusPending {
		return false, nil
	}
	t.Status = topupDatamodel.StatusFailed
	t.FailedAt = &failedAt
	return true, nil
}

func (m *mockTopupRepository) SweepExpired(cutoff, expiredAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var swept int64
	for _, t := range m.topups {
		if t.Status == topupDatamodel.StatusPending && !t.CreatedAt.After(cutoff) {
			t.Status = topupDatamodel.StatusExpired
			t.ExpiredAt = &expiredAt
			swept++
		}
	}
	return swept, nil
}

func (m *mockTopupRepository) balance(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func (m *mockTopupRepository) seedPending(userID string, amount int64, memoCode string, createdAt time.Time) *topupDatamodel.Topup {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &topupDatamodel.Topup{
		ID:        m.nextID,
		UserID:    userID,
		Amount:    amount,
		MemoCode:  memoCode,
		Status:    topupDatamodel.StatusPending,
		CreatedAt: createdAt,
	}
	m.nextID++
	m.topups[t.ID] = t
	return t
}

var _ = Describe("TopupService", func() {
	const window = 15 * time.Minute

	var (
		service  *topupPkg.Service
		mockRepo *mockTopupRepository
		logger   *slog.Logger
		baseTime time.Time
		clock    func() time.Time
		ctx      context.Context
	)

	BeforeEach(func() {
		mockRepo = newMockTopupRepository()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		clock = func() time.Time { return baseTime }
		ctx = context.Background()

		service = topupPkg.NewService(mockRepo, events.NewEventBus(logger), topupPkg.ServiceConfig{
			MinAmount:         10000,
			MaxPendingPerUser: 2,
			ValidityWindow:    window,
			MemoPrefix:        "DH",
			Beneficiary: topupPkg.Beneficiary{
				BankCode:      "VCB",
				AccountNumber: "0071000123456",
				AccountName:   "CONG TY DIGIGO",
			},
		}, logger).WithClock(func() time.Time { return clock() })
	})

	Describe("CreateTopup", func() {
		Context("when the amount is valid", func() {
			It("should create a pending topup with a prefixed memo code", func() {
				result, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})

				Expect(err).ToNot(HaveOccurred())
				Expect(result.Topup.Status).To(Equal(topupPkg.StatusPending))
				Expect(result.Topup.MemoCode).To(HavePrefix("DH"))
				Expect(result.Topup.MemoCode).To(HaveLen(10))
				Expect(result.Payload.BankCode).To(Equal("VCB"))
				Expect(result.Payload.TransferContent).To(ContainSubstring(result.Topup.MemoCode))
			})
		})

		Context("when the amount is below the minimum", func() {
			It("should reject without side effects", func() {
				result, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 9999})

				Expect(err).To(HaveOccurred())
				Expect(result).To(BeNil())

				var appErr *internal.AppError
				Expect(errors.As(err, &appErr)).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
				Expect(mockRepo.topups).To(BeEmpty())
			})
		})

		Context("when the user is at the pending cap", func() {
			It("should reject the third pending topup", func() {
				_, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})
				Expect(err).ToNot(HaveOccurred())
				_, err = service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 60000})
				Expect(err).ToNot(HaveOccurred())

				_, err = service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 70000})
				Expect(err).To(MatchError(internal.ErrTooManyPendingTopups))
			})

			It("should free a slot when a pending topup expires", func() {
				_, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})
				Expect(err).ToNot(HaveOccurred())
				_, err = service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 60000})
				Expect(err).ToNot(HaveOccurred())

				// Move past the validity window: both pending slots age out.
				clock = func() time.Time { return baseTime.Add(window + time.Second) }

				_, err = service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 70000})
				Expect(err).ToNot(HaveOccurred())
			})

			It("should free a slot when a pending topup is cancelled", func() {
				first, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})
				Expect(err).ToNot(HaveOccurred())
				_, err = service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 60000})
				Expect(err).ToNot(HaveOccurred())

				Expect(service.Cancel(ctx, first.Topup.ID, "user-1")).To(Succeed())

				_, err = service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 70000})
				Expect(err).ToNot(HaveOccurred())
			})
		})
	})

	Describe("Cancel", func() {
		It("should refuse to cancel another user's topup", func() {
			result, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})
			Expect(err).ToNot(HaveOccurred())

			err = service.Cancel(ctx, result.Topup.ID, "user-2")
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))

			record, err := mockRepo.GetByID(result.Topup.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(record.Status).To(Equal(topupPkg.StatusPending))
		})

		It("should refuse to cancel a completed topup", func() {
			result, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Approve(ctx, result.Topup.ID)
			Expect(err).ToNot(HaveOccurred())

			err = service.Cancel(ctx, result.Topup.ID, "user-1")
			Expect(err).To(MatchError(internal.ErrAlreadyFinalized))
		})
	})

	Describe("Reconcile", func() {
		var pending *topupDatamodel.Topup

		BeforeEach(func() {
			pending = mockRepo.seedPending("user-1", 50000, "DH55512345", baseTime)
		})

		Context("when the memo matches exactly", func() {
			It("should credit the topup and the balance once", func() {
				result, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})

				Expect(err).ToNot(HaveOccurred())
				Expect(result.AlreadyProcessed).To(BeFalse())
				Expect(result.Topup.ID).To(Equal(pending.ID))
				Expect(result.Topup.Status).To(Equal(topupPkg.StatusCompleted))
				Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
			})
		})

		Context("when the memo is embedded in gateway noise", func() {
			It("should still credit via substring match", func() {
				result, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "MBVCB.123 chuyen tien dh 5551 2345 tu NGUYEN VAN A",
					ExternalReference: "REF1",
				})

				Expect(err).ToNot(HaveOccurred())
				Expect(result.Topup.ID).To(Equal(pending.ID))
			})
		})

		Context("when the same external reference is delivered twice", func() {
			It("should acknowledge the replay without crediting again", func() {
				first, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})
				Expect(err).ToNot(HaveOccurred())
				Expect(first.AlreadyProcessed).To(BeFalse())

				second, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})
				Expect(err).ToNot(HaveOccurred())
				Expect(second.AlreadyProcessed).To(BeTrue())
				Expect(second.Topup.ID).To(Equal(first.Topup.ID))

				Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
			})
		})

		Context("when nothing matches", func() {
			It("should hold the notification with NoMatch", func() {
				_, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "completely unrelated text",
					ExternalReference: "REF9",
				})

				Expect(err).To(MatchError(internal.ErrNoMatch))
				Expect(mockRepo.balance("user-1")).To(BeZero())
			})
		})

		Context("when two pending topups both match", func() {
			It("should hold the notification with AmbiguousMatch", func() {
				mockRepo.seedPending("user-2", 60000, "DH99900001", baseTime)
				_, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "pay DH55512345 and DH99900001",
					ExternalReference: "REF9",
				})

				Expect(err).To(MatchError(internal.ErrAmbiguousMatch))
				Expect(mockRepo.balance("user-1")).To(BeZero())
				Expect(mockRepo.balance("user-2")).To(BeZero())
			})
		})

		Context("when the reported amount differs from the matched topup", func() {
			It("should credit the stored amount anyway", func() {
				result, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            49000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})

				Expect(err).ToNot(HaveOccurred())
				Expect(result.Topup.Amount).To(Equal(int64(50000)))
				Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
			})
		})

		Context("when the matched topup is past its validity window", func() {
			It("should refuse with the expired code", func() {
				clock = func() time.Time { return baseTime.Add(window + time.Second) }

				_, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})

				Expect(err).To(MatchError(internal.ErrTopupExpired))
				Expect(mockRepo.balance("user-1")).To(BeZero())
			})

			It("should report expired for a late notification with a noisy memo", func() {
				clock = func() time.Time { return baseTime.Add(16 * time.Minute) }

				_, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            100000,
					MemoText:          "CT DH55512345 NOIDUNG",
					ExternalReference: "REF1",
				})

				Expect(err).To(MatchError(internal.ErrTopupExpired))
				Expect(mockRepo.balance("user-1")).To(BeZero())
			})

			It("should report expired after the sweeper stamped the row", func() {
				clock = func() time.Time { return baseTime.Add(window + time.Minute) }
				swept, err := mockRepo.SweepExpired(clock().Add(-window), clock())
				Expect(err).ToNot(HaveOccurred())
				Expect(swept).To(Equal(int64(1)))

				_, err = service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})

				Expect(err).To(MatchError(internal.ErrTopupExpired))
				Expect(mockRepo.balance("user-1")).To(BeZero())
			})
		})

		Context("when a duplicate arrives under a different external reference", func() {
			It("should report already processed without crediting again", func() {
				first, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})
				Expect(err).ToNot(HaveOccurred())
				Expect(first.AlreadyProcessed).To(BeFalse())

				second, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF2",
				})

				Expect(err).ToNot(HaveOccurred())
				Expect(second.AlreadyProcessed).To(BeTrue())
				Expect(second.Topup.ID).To(Equal(pending.ID))
				Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
			})
		})

		Context("when the memo names a cancelled topup", func() {
			It("should refuse as already finalized", func() {
				Expect(service.Cancel(ctx, pending.ID, "user-1")).To(Succeed())

				_, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
					Amount:            50000,
					MemoText:          "DH55512345",
					ExternalReference: "REF1",
				})

				Expect(err).To(MatchError(internal.ErrAlreadyFinalized))
				Expect(mockRepo.balance("user-1")).To(BeZero())
			})
		})

		Context("when many notifications race for the same topup", func() {
			It("should credit exactly once", func() {
				const concurrency = 8

				var wg sync.WaitGroup
				credited := make(chan bool, concurrency)

				for i := 0; i < concurrency; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						result, err := service.Reconcile(ctx, topupPkg.ReconcileRequest{
							Amount:            50000,
							MemoText:          "DH55512345",
							ExternalReference: "REF1",
						})
						if err == nil && !result.AlreadyProcessed {
							credited <- true
						}
					}()
				}
				wg.Wait()
				close(credited)

				wins := 0
				for range credited {
					wins++
				}
				Expect(wins).To(Equal(1))
				Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
			})
		})
	})

	Describe("Approve", func() {
		It("should credit a pending topup through the same path as the webhook", func() {
			pending := mockRepo.seedPending("user-1", 50000, "DH11122233", baseTime)

			result, err := service.Approve(ctx, pending.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(topupPkg.StatusCompleted))
			Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
		})

		It("should report a conflict when approving twice", func() {
			pending := mockRepo.seedPending("user-1", 50000, "DH11122233", baseTime)

			_, err := service.Approve(ctx, pending.ID)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Approve(ctx, pending.ID)
			Expect(err).To(MatchError(internal.ErrAlreadyFinalized))
			Expect(mockRepo.balance("user-1")).To(Equal(int64(50000)))
		})

		It("should refuse an expired topup", func() {
			pending := mockRepo.seedPending("user-1", 50000, "DH11122233", baseTime)
			clock = func() time.Time { return baseTime.Add(window + time.Second) }

			_, err := service.Approve(ctx, pending.ID)
			Expect(err).To(MatchError(internal.ErrTopupExpired))
			Expect(mockRepo.balance("user-1")).To(BeZero())
		})
	})

	Describe("ListForUser", func() {
		It("should present over-age pending topups as expired", func() {
			mockRepo.seedPending("user-1", 50000, "DH11122233", baseTime.Add(-window-time.Minute))
			mockRepo.seedPending("user-1", 60000, "DH44455566", baseTime)

			topups, err := service.ListForUser("user-1", 20, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(topups).To(HaveLen(2))

			statuses := []string{topups[0].Status, topups[1].Status}
			Expect(statuses).To(ConsistOf(topupPkg.StatusExpired, topupPkg.StatusPending))
		})
	})

	Describe("memo code generation", func() {
		It("should produce codes in the configured shape", func() {
			result, err := service.CreateTopup(ctx, "user-1", topupPkg.CreateTopupDTO{Amount: 50000})
			Expect(err).ToNot(HaveOccurred())

			code := result.Topup.MemoCode
			Expect(code).To(HavePrefix("DH"))
			digits := strings.TrimPrefix(code, "DH")
			Expect(digits).To(HaveLen(8))
			Expect(digits).To(MatchRegexp(`^\d{8}$`))
		})
	})
})
