package purchase

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/thaiGO2003/DigiGO-sub000/internal"
	purchaseDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/purchase"
	referralDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/referral"
	userDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/user"
	"github.com/thaiGO2003/DigiGO-sub000/internal/core/events"
	"github.com/thaiGO2003/DigiGO-sub000/internal/metrics"
	"github.com/thaiGO2003/DigiGO-sub000/internal/referral"
)

// Repository defines the data access methods for purchases and the earning
// records the commission cascade posts.
type Repository interface {
	// CompletePurchase settles the purchase in one transaction: conditional
	// balance debit, purchase insert, and (when earning is non-nil) the
	// earning insert keyed uniquely by purchase id. Returns
	// ErrInsufficientBalance when the debit condition fails.
	CompletePurchase(p *purchaseDatamodel.Purchase, earning *referralDatamodel.Earning) error
	GetByID(id int64) (*purchaseDatamodel.Purchase, error)
	// CountSuccessfulReferrals counts distinct referred users the referrer
	// has already earned from.
	CountSuccessfulReferrals(referrerID string) (int64, error)
	HasEarningFromBuyer(referrerID, buyerID string) (bool, error)
}

// UserReader is the read side of the user ledger this service needs.
type UserReader interface {
	GetByID(id string) (*userDatamodel.User, error)
}

type ServiceAPI interface {
	CreatePurchase(ctx context.Context, userID string, dto CreatePurchaseDTO) (*PurchaseResult, error)
}

// Service settles purchases synchronously against a verified balance and
// runs the commission cascade on completion.
type Service struct {
	repo     Repository
	users    UserReader
	engine   *referral.Engine
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, users UserReader, engine *referral.Engine, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		engine:   engine,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// CreatePurchase debits the buyer and, when the buyer was referred, posts the
// referrer's earning in the same unit of work. Admin-originated purchases
// never produce commission or enter revenue statistics.
func (s *Service) CreatePurchase(ctx context.Context, userID string, dto CreatePurchaseDTO) (*PurchaseResult, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("purchase validation failed", "error", err, "user_id", userID)
		return nil, err
	}

	buyer, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	discount, referralApplied := s.engine.PurchaseDiscount(buyer.TotalDeposited, buyer.ReferrerID != nil)
	net := dto.Amount - dto.Amount*int64(discount)/100

	now := s.now()
	record := &purchaseDatamodel.Purchase{
		UserID:                  userID,
		ProductID:               dto.ProductID,
		Amount:                  net,
		CostPrice:               dto.CostPrice,
		DiscountPercent:         discount,
		ReferralDiscountApplied: referralApplied,
		Status:                  StatusCompleted,
		CreatedAt:               now,
		CompletedAt:             &now,
	}

	earning, commissionPercent, err := s.buildEarning(buyer, net, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CompletePurchase(record, earning); err != nil {
		s.logger.Warn("purchase settlement failed",
			"error", err,
			"user_id", userID,
			"net_amount", net)
		return nil, err
	}

	if !buyer.IsAdmin {
		metrics.PurchasesTotal.Inc()
	}
	if earning != nil {
		metrics.CommissionsTotal.Inc()
		s.logger.Info("referral earning posted",
			"purchase_id", record.ID,
			"referrer_id", earning.ReferrerID,
			"amount", earning.Amount,
			"percent", earning.Percent)
	}

	s.logger.Info("purchase completed",
		"purchase_id", record.ID,
		"user_id", userID,
		"net_amount", net,
		"discount_percent", discount)

	s.eventBus.Publish(ctx, events.NewPurchaseCompletedEvent(record.ID, userID, net, earning != nil))

	return &PurchaseResult{
		Purchase:          FromDataModel(record),
		NetAmount:         net,
		CommissionPosted:  earning != nil,
		CommissionPercent: commissionPercent,
	}, nil
}

// buildEarning computes the cascade outcome before the settlement
// transaction; the repository fills the purchase id once the insert happens.
func (s *Service) buildEarning(buyer *userDatamodel.User, netAmount int64, now time.Time) (*referralDatamodel.Earning, int, error) {
	if buyer.IsAdmin || buyer.ReferrerID == nil {
		return nil, 0, nil
	}

	referrerID := *buyer.ReferrerID
	count, err := s.repo.CountSuccessfulReferrals(referrerID)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to count referrals", err)
	}
	counted, err := s.repo.HasEarningFromBuyer(referrerID, buyer.ID)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to check referral history", err)
	}
	if !counted {
		// This purchase makes the buyer a successful referral.
		count++
	}

	percent := s.engine.CommissionPercent(count)
	amount := netAmount * int64(percent) / 100
	if percent == 0 || amount == 0 {
		return nil, percent, nil
	}

	return &referralDatamodel.Earning{
		ReferrerID:     referrerID,
		ReferredUserID: buyer.ID,
		Amount:         amount,
		Percent:        percent,
		CreatedAt:      now,
	}, percent, nil
}
