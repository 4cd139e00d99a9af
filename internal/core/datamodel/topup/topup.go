package topup

import (
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	// StatusExpired is stamped by the background sweep. Crediting paths never
	// trust it alone; eligibility is always re-derived from CreatedAt.
	StatusExpired = "expired"
)

type Topup struct {
	ID       int64  `gorm:"primaryKey"`
	UserID   string `gorm:"column:user_id;not null;index"`
	Amount   int64  `gorm:"column:amount;not null"`
	MemoCode string `gorm:"column:memo_code;not null;index"`
	Status   string `gorm:"column:status;default:pending;index"`

	// Beneficiary configuration frozen at creation for audit.
	BankCode      string `gorm:"column:bank_code;not null"`
	AccountNumber string `gorm:"column:account_number;not null"`
	AccountName   string `gorm:"column:account_name;not null"`

	ExternalReference *string    `gorm:"column:external_reference;uniqueIndex"`
	CreatedAt         time.Time  `gorm:"column:created_at;default:now()"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	FailedAt          *time.Time `gorm:"column:failed_at"`
	ExpiredAt         *time.Time `gorm:"column:expired_at"`
}

func (Topup) TableName() string {
	return "topups"
}
