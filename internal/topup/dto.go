package topup

import (
	"fmt"

	"github.com/thaiGO2003/DigiGO-sub000/internal/core/common/validation"
)

type CreateTopupDTO struct {
	Amount int64 `json:"amount"`
}

func (d *CreateTopupDTO) Validate(minAmount int64) error {
	if appErr := validation.ValidateTopupAmount(d.Amount, minAmount); appErr != nil {
		return appErr
	}
	return nil
}

// PaymentPayload is what the payer needs to make the bank transfer: amount,
// the frozen beneficiary, and the memo to put in the free-text field. QR
// rendering is a presentation concern downstream of this struct.
type PaymentPayload struct {
	Amount          int64  `json:"amount"`
	MemoCode        string `json:"memo_code"`
	BankCode        string `json:"bank_code"`
	AccountNumber   string `json:"account_number"`
	AccountName     string `json:"account_name"`
	TransferContent string `json:"transfer_content"`
}

func NewPaymentPayload(t *Topup) PaymentPayload {
	return PaymentPayload{
		Amount:          t.Amount,
		MemoCode:        t.MemoCode,
		BankCode:        t.BankCode,
		AccountNumber:   t.AccountNumber,
		AccountName:     t.AccountName,
		TransferContent: fmt.Sprintf("%s|%s|%d|%s", t.BankCode, t.AccountNumber, t.Amount, t.MemoCode),
	}
}

type TopupWithPayload struct {
	Topup   *Topup         `json:"topup"`
	Payload PaymentPayload `json:"payload"`
}

// BankNotificationRequest is the inbound transfer notification from the bank
// rail: the amount is advisory, matching is driven by the memo text.
type BankNotificationRequest struct {
	Amount            int64  `json:"amount"`
	MemoText          string `json:"memo_text"`
	ExternalReference string `json:"external_reference"`
}

func (r *BankNotificationRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("memo_text", r.MemoText).Required()
	validator.Field("external_reference", r.ExternalReference).Required()
	validator.Field("amount", r.Amount).Required().MinInt(1, "INVALID_AMOUNT")

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type BankNotificationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TopupID int64  `json:"topup_id,omitempty"`
}

// ReconcileRequest is the service-level view of a notification.
type ReconcileRequest struct {
	Amount            int64
	MemoText          string
	ExternalReference string
}

// ReconcileResult reports which top-up a notification settled.
// AlreadyProcessed means the external reference was seen before and the
// balance was left untouched; callers must still acknowledge success.
type ReconcileResult struct {
	Topup            *Topup
	AlreadyProcessed bool
}
