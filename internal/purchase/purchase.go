package purchase

import (
	"time"

	purchaseDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/purchase"
)

const (
	StatusCompleted = purchaseDatamodel.StatusCompleted
	StatusFailed    = purchaseDatamodel.StatusFailed
)

type Purchase struct {
	ID                      int64      `json:"id"`
	UserID                  string     `json:"user_id"`
	ProductID               int64      `json:"product_id"`
	Amount                  int64      `json:"amount"`
	CostPrice               int64      `json:"cost_price"`
	DiscountPercent         int        `json:"discount_percent"`
	ReferralDiscountApplied bool       `json:"referral_discount_applied"`
	Status                  string     `json:"status"`
	CreatedAt               time.Time  `json:"created_at"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
}

func FromDataModel(p *purchaseDatamodel.Purchase) *Purchase {
	return &Purchase{
		ID:                      p.ID,
		UserID:                  p.UserID,
		ProductID:               p.ProductID,
		Amount:                  p.Amount,
		CostPrice:               p.CostPrice,
		DiscountPercent:         p.DiscountPercent,
		ReferralDiscountApplied: p.ReferralDiscountApplied,
		Status:                  p.Status,
		CreatedAt:               p.CreatedAt,
		CompletedAt:             p.CompletedAt,
	}
}
