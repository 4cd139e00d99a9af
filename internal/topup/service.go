package topup

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/thaiGO2003/DigiGO-sub000/internal"
	topupDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/topup"
	"github.com/thaiGO2003/DigiGO-sub000/internal/core/events"
	"github.com/thaiGO2003/DigiGO-sub000/internal/metrics"
)

const (
	memoGenerationAttempts = 5
	creditRetryAttempts    = 3

	// reconcileLookback bounds how far back the late-notification classifier
	// scans. Anything older surfaces as an unknown memo.
	reconcileLookback = 24 * time.Hour
)

// Repository defines the data access methods for top-ups. All conditional
// mutations are keyed on the current status so concurrent finalizers cannot
// both win.
type Repository interface {
	// CreatePending persists a new pending top-up, enforcing the per-user
	// pending cap atomically. Returns ErrTooManyPendingTopups when the user
	// already has maxPending non-expired pending top-ups.
	CreatePending(t *topupDatamodel.Topup, maxPending int, pendingSince time.Time) error
	GetByID(id int64) (*topupDatamodel.Topup, error)
	// GetByExternalReference returns (nil, nil) when the reference is unknown.
	GetByExternalReference(ref string) (*topupDatamodel.Topup, error)
	GetByUserID(userID string, limit, offset int) ([]*topupDatamodel.Topup, error)
	ListPending(pendingSince time.Time) ([]*topupDatamodel.Topup, error)
	// ListRecent returns top-ups of any status created after the given time.
	// Reconciliation uses it to tell a late transfer to a known intent apart
	// from an unknown memo.
	ListRecent(createdSince time.Time) ([]*topupDatamodel.Topup, error)
	MemoCodeInUse(code string, pendingSince time.Time) (bool, error)
	// Credit atomically moves pending -> completed and increments the owner's
	// balance and lifetime deposits in one transaction. Returns (nil, nil)
	// when the conditional update matched no row.
	Credit(id int64, externalRef *string, completedAt, pendingSince time.Time) (*topupDatamodel.Topup, error)
	// MarkFailed conditionally moves pending -> failed; reports whether the
	// transition happened.
	MarkFailed(id int64, failedAt time.Time) (bool, error)
	// SweepExpired stamps over-age pending rows as expired.
	SweepExpired(cutoff, expiredAt time.Time) (int64, error)
}

type ServiceAPI interface {
	CreateTopup(ctx context.Context, userID string, dto CreateTopupDTO) (*TopupWithPayload, error)
	ListForUser(userID string, limit, offset int) ([]*Topup, error)
	Cancel(ctx context.Context, id int64, userID string) error
	Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error)
	Approve(ctx context.Context, id int64) (*Topup, error)
	Reject(ctx context.Context, id int64) error
	ListPendingReview() ([]*Topup, error)
}

// Service implements intent issuing, reconciliation and crediting on top of
// the ledger store.
type Service struct {
	repo        Repository
	memo        *MemoGenerator
	eventBus    *events.EventBus
	logger      *slog.Logger
	minAmount   int64
	maxPending  int
	window      time.Duration
	beneficiary Beneficiary
	now         func() time.Time
}

// Beneficiary is the bank-account configuration frozen into each top-up at
// creation.
type Beneficiary struct {
	BankCode      string
	AccountNumber string
	AccountName   string
}

type ServiceConfig struct {
	MinAmount         int64
	MaxPendingPerUser int
	ValidityWindow    time.Duration
	MemoPrefix        string
	Beneficiary       Beneficiary
}

func NewService(repo Repository, eventBus *events.EventBus, cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		memo:        NewMemoGenerator(cfg.MemoPrefix),
		eventBus:    eventBus,
		logger:      logger,
		minAmount:   cfg.MinAmount,
		maxPending:  cfg.MaxPendingPerUser,
		window:      cfg.ValidityWindow,
		beneficiary: cfg.Beneficiary,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to move time past the
// validity window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) pendingSince(now time.Time) time.Time {
	return now.Add(-s.window)
}

// CreateTopup issues a new pending top-up for the user and renders the
// payment payload. No side effect happens on validation or cap errors.
func (s *Service) CreateTopup(ctx context.Context, userID string, dto CreateTopupDTO) (*TopupWithPayload, error) {
	if err := dto.Validate(s.minAmount); err != nil {
		s.logger.Warn("topup validation failed", "error", err, "user_id", userID, "amount", dto.Amount)
		return nil, err
	}

	now := s.now()
	code, err := s.generateMemoCode(now)
	if err != nil {
		return nil, err
	}

	record := &topupDatamodel.Topup{
		UserID:        userID,
		Amount:        dto.Amount,
		MemoCode:      code,
		Status:        StatusPending,
		BankCode:      s.beneficiary.BankCode,
		AccountNumber: s.beneficiary.AccountNumber,
		AccountName:   s.beneficiary.AccountName,
		CreatedAt:     now,
	}

	if err := s.repo.CreatePending(record, s.maxPending, s.pendingSince(now)); err != nil {
		s.logger.Warn("topup creation rejected", "error", err, "user_id", userID, "amount", dto.Amount)
		return nil, err
	}

	result := FromDataModel(record)
	s.logger.Info("topup created",
		"topup_id", result.ID,
		"user_id", userID,
		"amount", dto.Amount,
		"memo_code", code)

	return &TopupWithPayload{Topup: result, Payload: NewPaymentPayload(result)}, nil
}

// generateMemoCode draws random codes until one is free among the currently
// pending set. Uniqueness within that set is what the matcher relies on.
func (s *Service) generateMemoCode(now time.Time) (string, error) {
	for attempt := 0; attempt < memoGenerationAttempts; attempt++ {
		code, err := s.memo.Generate()
		if err != nil {
			return "", errors.NewInternalError("failed to generate memo code", err)
		}
		inUse, err := s.repo.MemoCodeInUse(code, s.pendingSince(now))
		if err != nil {
			return "", errors.NewInternalError("failed to check memo code", err)
		}
		if !inUse {
			return code, nil
		}
		s.logger.Warn("memo code collision, retrying", "attempt", attempt+1)
	}
	return "", errors.NewInternalError("exhausted memo code attempts", nil)
}

func (s *Service) ListForUser(userID string, limit, offset int) ([]*Topup, error) {
	records, err := s.repo.GetByUserID(userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list topups", "error", err, "user_id", userID)
		return nil, errors.NewInternalError("failed to list top-ups", err)
	}

	now := s.now()
	result := FromDataModelSlice(records)
	for _, t := range result {
		t.Status = t.StatusView(now, s.window)
	}
	return result, nil
}

// Cancel moves the caller's own pending top-up to failed. Balance is never
// touched on this path.
func (s *Service) Cancel(ctx context.Context, id int64, userID string) error {
	record, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		s.logger.Warn("cancel denied: not the owner", "topup_id", id, "user_id", userID)
		return errors.ErrUnauthorizedAccess
	}
	return s.fail(ctx, FromDataModel(record), "cancelled by user")
}

// Reject is the admin-side pending -> failed transition.
func (s *Service) Reject(ctx context.Context, id int64) error {
	record, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	return s.fail(ctx, FromDataModel(record), "rejected by admin")
}

func (s *Service) fail(ctx context.Context, t *Topup, reason string) error {
	if t.Status != StatusPending {
		return errors.ErrAlreadyFinalized
	}

	moved, err := s.repo.MarkFailed(t.ID, s.now())
	if err != nil {
		return errors.NewInternalError("failed to update top-up", err)
	}
	if !moved {
		// A concurrent finalizer got there first.
		return errors.ErrAlreadyFinalized
	}

	s.logger.Info("topup failed", "topup_id", t.ID, "user_id", t.UserID, "reason", reason)
	s.eventBus.Publish(ctx, events.NewTopupFailedEvent(t.ID, t.UserID, t.Amount, reason))
	return nil
}

// Approve is the admin manual-completion path. It runs through the same
// conditional credit as the webhook, with no bypass of expiry or idempotency.
func (s *Service) Approve(ctx context.Context, id int64) (*Topup, error) {
	result, err := s.credit(ctx, id, nil, SourceAdmin)
	if err != nil {
		return nil, err
	}
	if result.AlreadyProcessed {
		// The admin UI treats an already-settled top-up as a conflict, not a
		// silent success.
		return result.Topup, errors.ErrAlreadyFinalized
	}
	return result.Topup, nil
}

// ListPendingReview returns pending, non-expired top-ups for the admin queue.
func (s *Service) ListPendingReview() ([]*Topup, error) {
	records, err := s.repo.ListPending(s.pendingSince(s.now()))
	if err != nil {
		return nil, errors.NewInternalError("failed to list pending top-ups", err)
	}
	return FromDataModelSlice(records), nil
}

// Reconcile matches an inbound bank notification to the unique eligible
// pending top-up and credits it. The operation is idempotent on the external
// reference: a duplicate delivery returns the settled top-up without touching
// the balance.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	if req.ExternalReference != "" {
		existing, err := s.repo.GetByExternalReference(req.ExternalReference)
		if err != nil {
			return nil, errors.NewInternalError("failed to check external reference", err)
		}
		if existing != nil && existing.Status == StatusCompleted {
			s.logger.Info("duplicate bank notification",
				"external_reference", req.ExternalReference,
				"topup_id", existing.ID)
			metrics.ReconciliationsTotal.WithLabelValues("already_processed").Inc()
			return &ReconcileResult{Topup: FromDataModel(existing), AlreadyProcessed: true}, nil
		}
	}

	now := s.now()
	pending, err := s.repo.ListPending(s.pendingSince(now))
	if err != nil {
		return nil, errors.NewInternalError("failed to load pending top-ups", err)
	}

	matched, matchErr := MatchPending(FromDataModelSlice(pending), req.MemoText)
	if matchErr != nil {
		if matchErr.Code == errors.ErrCodeNoMatch {
			// The eligible set produced nothing, but the memo may still name
			// a known intent that aged out or was already settled. That must
			// be reported as such, not as an unknown memo.
			if result, lateErr := s.classifyLateMatch(req, now); result != nil || lateErr != nil {
				return result, lateErr
			}
		}
		// Held for manual resolution; log enough to reconcile by hand.
		s.logger.Warn("bank notification held for manual review",
			"error_code", matchErr.Code,
			"amount", req.Amount,
			"normalized_memo", NormalizeMemo(req.MemoText),
			"external_reference", req.ExternalReference,
			"pending_candidates", len(pending),
			"received_at", now)
		if matchErr.Code == errors.ErrCodeAmbiguousMatch {
			metrics.ReconciliationsTotal.WithLabelValues("ambiguous").Inc()
		} else {
			metrics.ReconciliationsTotal.WithLabelValues("no_match").Inc()
		}
		return nil, matchErr
	}

	// The reported amount is advisory: memo match drives crediting, a
	// mismatch is surfaced to operators instead of blocking.
	if matched.Amount != req.Amount {
		s.logger.Warn("notification amount differs from matched topup",
			"topup_id", matched.ID,
			"expected_amount", matched.Amount,
			"reported_amount", req.Amount,
			"external_reference", req.ExternalReference)
		metrics.AmountMismatchTotal.Inc()
	}

	ref := req.ExternalReference
	var refPtr *string
	if ref != "" {
		refPtr = &ref
	}

	result, err := s.credit(ctx, matched.ID, refPtr, SourceWebhook)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// classifyLateMatch re-runs the memo match over recent top-ups of any status.
// A unique hit maps to the refusal the intent's state calls for: expired for
// an aged-out pending row, already-processed for a settled one. Anything else
// falls back to the no-match hold.
func (s *Service) classifyLateMatch(req ReconcileRequest, now time.Time) (*ReconcileResult, error) {
	recent, err := s.repo.ListRecent(now.Add(-reconcileLookback))
	if err != nil {
		s.logger.Error("failed to load recent top-ups", "error", err)
		return nil, nil
	}

	matched, matchErr := MatchPending(FromDataModelSlice(recent), req.MemoText)
	if matchErr != nil {
		return nil, nil
	}

	switch {
	case matched.Status == StatusCompleted:
		s.logger.Info("notification matches an already settled top-up",
			"topup_id", matched.ID,
			"external_reference", req.ExternalReference)
		metrics.ReconciliationsTotal.WithLabelValues("already_processed").Inc()
		return &ReconcileResult{Topup: matched, AlreadyProcessed: true}, nil
	case matched.Status == StatusFailed:
		return nil, errors.ErrAlreadyFinalized
	case matched.Status == StatusExpired || matched.IsExpired(now, s.window):
		s.logger.Warn("notification arrived after the validity window",
			"topup_id", matched.ID,
			"created_at", matched.CreatedAt,
			"external_reference", req.ExternalReference)
		metrics.ReconciliationsTotal.WithLabelValues("expired").Inc()
		return nil, errors.ErrTopupExpired
	}
	return nil, nil
}

// credit executes the single atomic finalization: pending -> completed plus
// balance increment, exactly once. Concurrent callers race on a conditional
// update; losers are classified by re-reading the row.
func (s *Service) credit(ctx context.Context, id int64, externalRef *string, source string) (*ReconcileResult, error) {
	now := s.now()

	for attempt := 0; attempt < creditRetryAttempts; attempt++ {
		credited, err := s.repo.Credit(id, externalRef, now, s.pendingSince(now))
		if err != nil {
			// A concurrent webhook may have consumed the reference first.
			if externalRef != nil {
				if existing, refErr := s.repo.GetByExternalReference(*externalRef); refErr == nil && existing != nil && existing.Status == StatusCompleted {
					metrics.ReconciliationsTotal.WithLabelValues("already_processed").Inc()
					return &ReconcileResult{Topup: FromDataModel(existing), AlreadyProcessed: true}, nil
				}
			}
			return nil, errors.NewInternalError("credit transaction failed", err)
		}

		if credited != nil {
			result := FromDataModel(credited)
			s.logger.Info("topup credited",
				"topup_id", result.ID,
				"user_id", result.UserID,
				"amount", result.Amount,
				"source", source)
			metrics.ReconciliationsTotal.WithLabelValues("credited").Inc()
			metrics.CreditsTotal.WithLabelValues(source).Inc()
			metrics.CreditedAmount.Add(float64(result.Amount))

			ref := ""
			if externalRef != nil {
				ref = *externalRef
			}
			s.eventBus.Publish(ctx, events.NewTopupCompletedEvent(
				result.ID, result.UserID, result.Amount, result.MemoCode, ref, source))
			return &ReconcileResult{Topup: result}, nil
		}

		// The conditional update matched nothing; find out why.
		record, err := s.repo.GetByID(id)
		if err != nil {
			return nil, err
		}
		current := FromDataModel(record)

		switch {
		case current.Status == StatusCompleted:
			metrics.ReconciliationsTotal.WithLabelValues("already_processed").Inc()
			return &ReconcileResult{Topup: current, AlreadyProcessed: true}, nil
		case current.Status == StatusFailed:
			return nil, errors.ErrAlreadyFinalized
		case current.IsExpired(now, s.window):
			s.logger.Warn("credit refused: topup expired",
				"topup_id", id,
				"created_at", current.CreatedAt,
				"source", source)
			metrics.ReconciliationsTotal.WithLabelValues("expired").Inc()
			return nil, errors.ErrTopupExpired
		default:
			// Still pending and eligible, yet the update lost: transient
			// interference, retry.
			s.logger.Warn("credit retry after concurrent modification",
				"topup_id", id, "attempt", attempt+1)
		}
	}

	return nil, errors.ErrConcurrentUpdate
}
