package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTopupCompleted    = "topup.completed"
	EventTypeTopupFailed       = "topup.failed"
	EventTypePurchaseCompleted = "purchase.completed"
)

type TopupCompletedEvent struct {
	BaseEvent
	TopupID           int64  `json:"topup_id"`
	UserID            string `json:"user_id"`
	Amount            int64  `json:"amount"`
	MemoCode          string `json:"memo_code"`
	ExternalReference string `json:"external_reference"`
	Source            string `json:"source"`
}

func NewTopupCompletedEvent(topupID int64, userID string, amount int64, memoCode, externalReference, source string) *TopupCompletedEvent {
	return &TopupCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTopupCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"topup_id":           topupID,
				"user_id":            userID,
				"amount":             amount,
				"memo_code":          memoCode,
				"external_reference": externalReference,
				"source":             source,
			},
		},
		TopupID:           topupID,
		UserID:            userID,
		Amount:            amount,
		MemoCode:          memoCode,
		ExternalReference: externalReference,
		Source:            source,
	}
}

type TopupFailedEvent struct {
	BaseEvent
	TopupID int64  `json:"topup_id"`
	UserID  string `json:"user_id"`
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason"`
}

func NewTopupFailedEvent(topupID int64, userID string, amount int64, reason string) *TopupFailedEvent {
	return &TopupFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTopupFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"topup_id": topupID,
				"user_id":  userID,
				"amount":   amount,
				"reason":   reason,
			},
		},
		TopupID: topupID,
		UserID:  userID,
		Amount:  amount,
		Reason:  reason,
	}
}

type PurchaseCompletedEvent struct {
	BaseEvent
	PurchaseID       int64  `json:"purchase_id"`
	UserID           string `json:"user_id"`
	NetAmount        int64  `json:"net_amount"`
	CommissionPosted bool   `json:"commission_posted"`
}

func NewPurchaseCompletedEvent(purchaseID int64, userID string, netAmount int64, commissionPosted bool) *PurchaseCompletedEvent {
	return &PurchaseCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePurchaseCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"purchase_id":       purchaseID,
				"user_id":           userID,
				"net_amount":        netAmount,
				"commission_posted": commissionPosted,
			},
		},
		PurchaseID:       purchaseID,
		UserID:           userID,
		NetAmount:        netAmount,
		CommissionPosted: commissionPosted,
	}
}
