package model

import "time"

// Topics the sagas publish terminal-success notifications to.
// Delivery is at-least-once; the email worker tolerates duplicates.
const (
	TopicTopupCompleted    = "topup-completed"
	TopicWithdrawCompleted = "withdraw-completed"
	TopicTransferCompleted = "transfer-completed"
)

const (
	KindTopup    = "topup"
	KindWithdraw = "withdraw"
	KindTransfer = "transfer"
)

// NotificationEvent is the payload published on saga completion.
// The sagas treat it as opaque after marshalling; only the notification
// worker interprets it.
type NotificationEvent struct {
	RecipientRef    string    `json:"recipient_ref"`
	Kind            string    `json:"kind"`
	Amount          int64     `json:"amount"`
	NewBalance      int64     `json:"new_balance"`
	OccurredAt      time.Time `json:"occurred_at"`
	SenderRef       string    `json:"sender_ref,omitempty"`
	ReceiverRef     string    `json:"receiver_ref,omitempty"`
	SenderBalance   *int64    `json:"sender_balance,omitempty"`
	ReceiverBalance *int64    `json:"receiver_balance,omitempty"`
}
