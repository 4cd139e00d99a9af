package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	topupDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/topup"
	topupPkg "github.com/thaiGO2003/DigiGO-sub000/internal/topup"
)

func TestTopupRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Topup Repository Suite")
}

// SQLite mirrors of the postgres models, without the now() column defaults.
type SQLiteUser struct {
	ID             string    `gorm:"primaryKey"`
	DisplayName    string    `gorm:"column:display_name"`
	Balance        int64     `gorm:"column:balance;default:0"`
	TotalDeposited int64     `gorm:"column:total_deposited;default:0"`
	ReferrerID     *string   `gorm:"column:referrer_id"`
	IsAdmin        bool      `gorm:"column:is_admin;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (SQLiteUser) TableName() string {
	return "users"
}

type SQLiteTopup struct {
	ID                int64      `gorm:"primaryKey"`
	UserID            string     `gorm:"column:user_id;not null"`
	Amount            int64      `gorm:"column:amount;not null"`
	MemoCode          string     `gorm:"column:memo_code;not null"`
	Status            string     `gorm:"column:status;default:pending"`
	BankCode          string     `gorm:"column:bank_code"`
	AccountNumber     string     `gorm:"column:account_number"`
	AccountName       string     `gorm:"column:account_name"`
	ExternalReference *string    `gorm:"column:external_reference"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	FailedAt          *time.Time `gorm:"column:failed_at"`
	ExpiredAt         *time.Time `gorm:"column:expired_at"`
}

func (SQLiteTopup) TableName() string {
	return "topups"
}

var _ = Describe("TopupRepository", func() {
	const window = 15 * time.Minute

	var (
		db   *gorm.DB
		repo topupPkg.Repository
		now  time.Time
	)

	pendingSince := func() time.Time {
		return now.Add(-window)
	}

	seedUser := func(id string, balance int64) {
		Expect(db.Create(&SQLiteUser{
			ID:        id,
			Balance:   balance,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error).To(Succeed())
	}

	seedTopup := func(userID string, amount int64, memoCode, status string, createdAt time.Time) *topupDatamodel.Topup {
		t := &topupDatamodel.Topup{
			UserID:    userID,
			Amount:    amount,
			MemoCode:  memoCode,
			Status:    status,
			CreatedAt: createdAt,
		}
		Expect(db.Create(t).Error).To(Succeed())
		return t
	}

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteUser{}, &SQLiteTopup{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewTopupRepository(db)
		now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		seedUser("user-1", 0)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("CreatePending", func() {
		It("should create a pending topup", func() {
			t := &topupDatamodel.Topup{
				UserID:    "user-1",
				Amount:    50000,
				MemoCode:  "DH11111111",
				Status:    topupDatamodel.StatusPending,
				CreatedAt: now,
			}

			err := repo.CreatePending(t, 2, pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(t.ID).To(BeNumerically(">", 0))
		})

		It("should reject an unknown user", func() {
			t := &topupDatamodel.Topup{
				UserID:    "ghost",
				Amount:    50000,
				MemoCode:  "DH11111111",
				Status:    topupDatamodel.StatusPending,
				CreatedAt: now,
			}

			err := repo.CreatePending(t, 2, pendingSince())
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})

		It("should enforce the per-user pending cap", func() {
			seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)
			seedTopup("user-1", 60000, "DH22222222", topupDatamodel.StatusPending, now)

			t := &topupDatamodel.Topup{
				UserID:    "user-1",
				Amount:    70000,
				MemoCode:  "DH33333333",
				Status:    topupDatamodel.StatusPending,
				CreatedAt: now,
			}

			err := repo.CreatePending(t, 2, pendingSince())
			Expect(err).To(MatchError(internal.ErrTooManyPendingTopups))
		})

		It("should not count over-age pending rows against the cap", func() {
			seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now.Add(-window-time.Minute))
			seedTopup("user-1", 60000, "DH22222222", topupDatamodel.StatusPending, now)

			t := &topupDatamodel.Topup{
				UserID:    "user-1",
				Amount:    70000,
				MemoCode:  "DH33333333",
				Status:    topupDatamodel.StatusPending,
				CreatedAt: now,
			}

			err := repo.CreatePending(t, 2, pendingSince())
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Credit", func() {
		It("should complete the topup and increment the balance in one step", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)

			ref := "REF1"
			credited, err := repo.Credit(t.ID, &ref, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(credited).NotTo(BeNil())
			Expect(credited.Status).To(Equal(topupDatamodel.StatusCompleted))
			Expect(credited.ExternalReference).To(HaveValue(Equal("REF1")))

			var u SQLiteUser
			Expect(db.First(&u, "id = ?", "user-1").Error).To(Succeed())
			Expect(u.Balance).To(Equal(int64(50000)))
			Expect(u.TotalDeposited).To(Equal(int64(50000)))
		})

		It("should credit only once when called twice", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)

			ref := "REF1"
			first, err := repo.Credit(t.ID, &ref, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(first).NotTo(BeNil())

			second, err := repo.Credit(t.ID, &ref, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeNil())

			var u SQLiteUser
			Expect(db.First(&u, "id = ?", "user-1").Error).To(Succeed())
			Expect(u.Balance).To(Equal(int64(50000)))
		})

		It("should refuse an over-age pending topup", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now.Add(-window-time.Minute))

			credited, err := repo.Credit(t.ID, nil, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(credited).To(BeNil())

			var u SQLiteUser
			Expect(db.First(&u, "id = ?", "user-1").Error).To(Succeed())
			Expect(u.Balance).To(BeZero())
		})

		It("should refuse a failed topup", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusFailed, now)

			credited, err := repo.Credit(t.ID, nil, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(credited).To(BeNil())
		})
	})

	Describe("MarkFailed", func() {
		It("should move a pending topup to failed", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)

			moved, err := repo.MarkFailed(t.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeTrue())

			record, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Status).To(Equal(topupDatamodel.StatusFailed))
			Expect(record.FailedAt).NotTo(BeNil())
		})

		It("should report false for a completed topup", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)

			_, err := repo.Credit(t.ID, nil, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())

			moved, err := repo.MarkFailed(t.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeFalse())
		})
	})

	Describe("SweepExpired", func() {
		It("should stamp only over-age pending rows", func() {
			old := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now.Add(-window-time.Minute))
			fresh := seedTopup("user-1", 60000, "DH22222222", topupDatamodel.StatusPending, now)
			done := seedTopup("user-1", 70000, "DH33333333", topupDatamodel.StatusCompleted, now.Add(-window-time.Minute))

			swept, err := repo.SweepExpired(pendingSince(), now)
			Expect(err).NotTo(HaveOccurred())
			Expect(swept).To(Equal(int64(1)))

			record, err := repo.GetByID(old.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Status).To(Equal(topupDatamodel.StatusExpired))
			Expect(record.ExpiredAt).NotTo(BeNil())

			record, err = repo.GetByID(fresh.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Status).To(Equal(topupDatamodel.StatusPending))

			record, err = repo.GetByID(done.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Status).To(Equal(topupDatamodel.StatusCompleted))
		})
	})

	Describe("GetByExternalReference", func() {
		It("should return nil for an unknown reference", func() {
			record, err := repo.GetByExternalReference("REF-UNKNOWN")
			Expect(err).NotTo(HaveOccurred())
			Expect(record).To(BeNil())
		})

		It("should find a credited topup by its reference", func() {
			t := seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)
			ref := "REF1"
			_, err := repo.Credit(t.ID, &ref, now, pendingSince())
			Expect(err).NotTo(HaveOccurred())

			record, err := repo.GetByExternalReference("REF1")
			Expect(err).NotTo(HaveOccurred())
			Expect(record).NotTo(BeNil())
			Expect(record.ID).To(Equal(t.ID))
		})
	})

	Describe("ListRecent", func() {
		It("should return recent rows regardless of status", func() {
			seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)
			seedTopup("user-1", 60000, "DH22222222", topupDatamodel.StatusExpired, now.Add(-window-time.Minute))
			seedTopup("user-1", 70000, "DH33333333", topupDatamodel.StatusCompleted, now.Add(-2*time.Hour))
			seedTopup("user-1", 80000, "DH44444444", topupDatamodel.StatusFailed, now.Add(-48*time.Hour))

			recent, err := repo.ListRecent(now.Add(-24 * time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(3))

			codes := make([]string, 0, len(recent))
			for _, t := range recent {
				codes = append(codes, t.MemoCode)
			}
			Expect(codes).To(ConsistOf("DH11111111", "DH22222222", "DH33333333"))
		})
	})

	Describe("MemoCodeInUse", func() {
		It("should see live pending codes only", func() {
			seedTopup("user-1", 50000, "DH11111111", topupDatamodel.StatusPending, now)
			seedTopup("user-1", 60000, "DH22222222", topupDatamodel.StatusFailed, now)
			seedTopup("user-1", 70000, "DH33333333", topupDatamodel.StatusPending, now.Add(-window-time.Minute))

			inUse, err := repo.MemoCodeInUse("DH11111111", pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(inUse).To(BeTrue())

			inUse, err = repo.MemoCodeInUse("DH22222222", pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(inUse).To(BeFalse())

			inUse, err = repo.MemoCodeInUse("DH33333333", pendingSince())
			Expect(err).NotTo(HaveOccurred())
			Expect(inUse).To(BeFalse())
		})
	})
})
