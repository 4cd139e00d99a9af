package referral

import (
	"time"
)

// Earning is an immutable commission record, created once per qualifying
// purchase. PurchaseID carries a unique index so a retried cascade can never
// post twice for the same purchase.
type Earning struct {
	ID             int64     `gorm:"primaryKey"`
	ReferrerID     string    `gorm:"column:referrer_id;not null;index"`
	ReferredUserID string    `gorm:"column:referred_user_id;not null"`
	PurchaseID     int64     `gorm:"column:purchase_id;not null;uniqueIndex"`
	Amount         int64     `gorm:"column:amount;not null"`
	Percent        int       `gorm:"column:percent;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
}

func (Earning) TableName() string {
	return "referral_earnings"
}
