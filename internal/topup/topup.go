package topup

import (
	"time"

	topupDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/topup"
)

const (
	StatusPending   = topupDatamodel.StatusPending
	StatusCompleted = topupDatamodel.StatusCompleted
	StatusFailed    = topupDatamodel.StatusFailed
	StatusExpired   = topupDatamodel.StatusExpired
)

// Finalization sources, recorded on completion events. Webhook and admin are
// independent, non-cooperative callers into the same credit path.
const (
	SourceWebhook = "webhook"
	SourceAdmin   = "admin"
)

type Topup struct {
	ID       int64  `json:"id"`
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	MemoCode string `json:"memo_code"`
	Status   string `json:"status"`

	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`

	ExternalReference *string    `json:"external_reference,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`
}

// IsExpired reports whether the top-up is past its validity window at the
// given instant. A swept "expired" status counts, but a stored "pending" is
// never trusted on its own: age wins.
func (t *Topup) IsExpired(now time.Time, window time.Duration) bool {
	if t.Status == StatusExpired {
		return true
	}
	return t.Status == StatusPending && now.Sub(t.CreatedAt) > window
}

// Eligible reports whether the top-up can still be credited.
func (t *Topup) Eligible(now time.Time, window time.Duration) bool {
	return t.Status == StatusPending && !t.IsExpired(now, window)
}

// StatusView is the externally observable status: a pending top-up past its
// deadline reads as expired even if the sweep has not stamped it yet.
func (t *Topup) StatusView(now time.Time, window time.Duration) string {
	if t.Status == StatusPending && t.IsExpired(now, window) {
		return StatusExpired
	}
	return t.Status
}

func ToDataModel(t *Topup) *topupDatamodel.Topup {
	return &topupDatamodel.Topup{
		ID:                t.ID,
		UserID:            t.UserID,
		Amount:            t.Amount,
		MemoCode:          t.MemoCode,
		Status:            t.Status,
		BankCode:          t.BankCode,
		AccountNumber:     t.AccountNumber,
		AccountName:       t.AccountName,
		ExternalReference: t.ExternalReference,
		CreatedAt:         t.CreatedAt,
		CompletedAt:       t.CompletedAt,
		FailedAt:          t.FailedAt,
		ExpiredAt:         t.ExpiredAt,
	}
}

func FromDataModel(t *topupDatamodel.Topup) *Topup {
	return &Topup{
		ID:                t.ID,
		UserID:            t.UserID,
		Amount:            t.Amount,
		MemoCode:          t.MemoCode,
		Status:            t.Status,
		BankCode:          t.BankCode,
		AccountNumber:     t.AccountNumber,
		AccountName:       t.AccountName,
		ExternalReference: t.ExternalReference,
		CreatedAt:         t.CreatedAt,
		CompletedAt:       t.CompletedAt,
		FailedAt:          t.FailedAt,
		ExpiredAt:         t.ExpiredAt,
	}
}

func FromDataModelSlice(topups []*topupDatamodel.Topup) []*Topup {
	result := make([]*Topup, len(topups))
	for i, t := range topups {
		result[i] = FromDataModel(t)
	}
	return result
}
