package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	topupDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/topup"
	userDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/user"
	topuppkg "github.com/thaiGO2003/DigiGO-sub000/internal/topup"
)

type TopupRepository struct {
	db *gorm.DB
}

func NewTopupRepository(db *gorm.DB) topuppkg.Repository {
	return &TopupRepository{
		db: db,
	}
}

// CreatePending inserts a pending top-up while holding the owner's user row,
// so the per-user pending cap cannot be exceeded by a burst of concurrent
// requests.
func (r *TopupRepository) CreatePending(t *topupDatamodel.Topup, maxPending int, pendingSince time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		owner := tx.Model(&userDatamodel.User{}).Where("id = ?", t.UserID)
		// SQLite has no FOR UPDATE; its single-writer transaction already
		// serializes the cap check.
		if tx.Dialector.Name() != "sqlite" {
			owner = owner.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var u userDatamodel.User
		if err := owner.First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrUserNotFound
			}
			return err
		}

		var pending int64
		err := tx.Model(&topupDatamodel.Topup{}).
			Where("user_id = ? AND status = ? AND created_at > ?", t.UserID, topupDatamodel.StatusPending, pendingSince).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending >= int64(maxPending) {
			return internal.ErrTooManyPendingTopups
		}

		return tx.Create(t).Error
	})
}

func (r *TopupRepository) GetByID(id int64) (*topupDatamodel.Topup, error) {
	var t topupDatamodel.Topup
	err := r.db.First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTopupNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TopupRepository) GetByExternalReference(ref string) (*topupDatamodel.Topup, error) {
	var t topupDatamodel.Topup
	err := r.db.Where("external_reference = ?", ref).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TopupRepository) GetByUserID(userID string, limit, offset int) ([]*topupDatamodel.Topup, error) {
	var topups []*topupDatamodel.Topup
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&topups).Error
	return topups, err
}

func (r *TopupRepository) ListPending(pendingSince time.Time) ([]*topupDatamodel.Topup, error) {
	var topups []*topupDatamodel.Topup
	err := r.db.Where("status = ? AND created_at > ?", topupDatamodel.StatusPending, pendingSince).
		Order("created_at ASC").
		Find(&topups).Error
	return topups, err
}

func (r *TopupRepository) ListRecent(createdSince time.Time) ([]*topupDatamodel.Topup, error) {
	var topups []*topupDatamodel.Topup
	err := r.db.Where("created_at > ?", createdSince).
		Order("created_at ASC").
		Find(&topups).Error
	return topups, err
}

func (r *TopupRepository) MemoCodeInUse(code string, pendingSince time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&topupDatamodel.Topup{}).
		Where("memo_code = ? AND status = ? AND created_at > ?", code, topupDatamodel.StatusPending, pendingSince).
		Count(&count).Error
	return count > 0, err
}

// Credit is the single atomic finalization: a conditional update keyed on the
// current status and age decides the winner, and the balance increment rides
// in the same transaction. Returns (nil, nil) when the row was not eligible,
// leaving classification to the caller.
func (r *TopupRepository) Credit(id int64, externalRef *string, completedAt, pendingSince time.Time) (*topupDatamodel.Topup, error) {
	var credited *topupDatamodel.Topup

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       topupDatamodel.StatusCompleted,
			"completed_at": completedAt,
		}
		if externalRef != nil {
			updates["external_reference"] = *externalRef
		}

		res := tx.Model(&topupDatamodel.Topup{}).
			Where("id = ? AND status = ? AND created_at > ?", id, topupDatamodel.StatusPending, pendingSince).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var t topupDatamodel.Topup
		if err := tx.First(&t, id).Error; err != nil {
			return err
		}

		err := tx.Model(&userDatamodel.User{}).
			Where("id = ?", t.UserID).
			Updates(map[string]interface{}{
				"balance":         gorm.Expr("balance + ?", t.Amount),
				"total_deposited": gorm.Expr("total_deposited + ?", t.Amount),
				"updated_at":      completedAt,
			}).Error
		if err != nil {
			return err
		}

		credited = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credited, nil
}

func (r *TopupRepository) MarkFailed(id int64, failedAt time.Time) (bool, error) {
	res := r.db.Model(&topupDatamodel.Topup{}).
		Where("id = ? AND status = ?", id, topupDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"status":    topupDatamodel.StatusFailed,
			"failed_at": failedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TopupRepository) SweepExpired(cutoff, expiredAt time.Time) (int64, error) {
	res := r.db.Model(&topupDatamodel.Topup{}).
		Where("status = ? AND created_at <= ?", topupDatamodel.StatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     topupDatamodel.StatusExpired,
			"expired_at": expiredAt,
		})
	return res.RowsAffected, res.Error
}
