package postgres

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	purchaseDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/purchase"
	referralDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/referral"
	userDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/user"
	purchasepkg "github.com/thaiGO2003/DigiGO-sub000/internal/purchase"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) purchasepkg.Repository {
	return &PurchaseRepository{
		db: db,
	}
}

// CompletePurchase runs the debit, the purchase insert and the earning
// insert in one transaction. The debit is conditional on sufficient balance;
// the earning is keyed uniquely by purchase id, so a replay can never post a
// second commission for the same purchase.
func (r *PurchaseRepository) CompletePurchase(p *purchaseDatamodel.Purchase, earning *referralDatamodel.Earning) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userDatamodel.User{}).
			Where("id = ? AND balance >= ?", p.UserID, p.Amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", p.Amount),
				"updated_at": p.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&userDatamodel.User{}).Where("id = ?", p.UserID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return internal.ErrUserNotFound
			}
			return internal.ErrInsufficientBalance
		}

		if err := tx.Create(p).Error; err != nil {
			return err
		}

		if earning != nil {
			earning.PurchaseID = p.ID
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(earning).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *PurchaseRepository) GetByID(id int64) (*purchaseDatamodel.Purchase, error) {
	var p purchaseDatamodel.Purchase
	err := r.db.First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPurchaseNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PurchaseRepository) CountSuccessfulReferrals(referrerID string) (int64, error) {
	var count int64
	err := r.db.Model(&referralDatamodel.Earning{}).
		Where("referrer_id = ?", referrerID).
		Distinct("referred_user_id").
		Count(&count).Error
	return count, err
}

func (r *PurchaseRepository) HasEarningFromBuyer(referrerID, buyerID string) (bool, error) {
	var count int64
	err := r.db.Model(&referralDatamodel.Earning{}).
		Where("referrer_id = ? AND referred_user_id = ?", referrerID, buyerID).
		Count(&count).Error
	return count > 0, err
}
