package purchase

import (
	"github.com/thaiGO2003/DigiGO-sub000/internal/core/common/validation"
)

type CreatePurchaseDTO struct {
	ProductID int64 `json:"product_id"`
	Amount    int64 `json:"amount"`
	CostPrice int64 `json:"cost_price"`
}

func (d *CreatePurchaseDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", d.Amount).Required().MinInt(1, "INVALID_AMOUNT")
	validator.Field("product_id", d.ProductID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// PurchaseResult carries the settled purchase plus what the cascade did.
type PurchaseResult struct {
	Purchase          *Purchase `json:"purchase"`
	NetAmount         int64     `json:"net_amount"`
	CommissionPosted  bool      `json:"commission_posted"`
	CommissionPercent int       `json:"commission_percent,omitempty"`
}
