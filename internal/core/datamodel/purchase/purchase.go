package purchase

import (
	"time"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Purchase is a debit against an already-verified balance; it settles
// synchronously, there is no reconciliation step.
type Purchase struct {
	ID                      int64      `gorm:"primaryKey"`
	UserID                  string     `gorm:"column:user_id;not null;index"`
	ProductID               int64      `gorm:"column:product_id"`
	Amount                  int64      `gorm:"column:amount;not null"`
	CostPrice               int64      `gorm:"column:cost_price;not null"`
	DiscountPercent         int        `gorm:"column:discount_percent;default:0"`
	ReferralDiscountApplied bool       `gorm:"column:referral_discount_applied;default:false"`
	Status                  string     `gorm:"column:status;not null"`
	CreatedAt               time.Time  `gorm:"column:created_at;default:now()"`
	CompletedAt             *time.Time `gorm:"column:completed_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}
