package user

import (
	"time"
)

// User carries the balance ledger view of an account. Balance and
// TotalDeposited are mutated only inside the credit and debit transactions;
// everything else reads them.
type User struct {
	ID             string    `gorm:"primaryKey"`
	DisplayName    string    `gorm:"column:display_name"`
	Balance        int64     `gorm:"column:balance;default:0"`
	TotalDeposited int64     `gorm:"column:total_deposited;default:0"`
	ReferrerID     *string   `gorm:"column:referrer_id"`
	IsAdmin        bool      `gorm:"column:is_admin;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}
