package model

import "time"

// User is the identity anchor every other entity foreign-keys into.
// The saga core reads users (existence check, notification recipient)
// but never mutates them after creation.
type User struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance holds a user's current funds in currency minor units.
// One row per user, total_amount never negative, mutated only through
// the balance store's conditional update.
type Balance struct {
	BalanceID          string     `json:"balance_id"`
	UserID             string     `json:"user_id"`
	TotalAmount        int64      `json:"total_amount"`
	LastWithdrawAmount *int64     `json:"last_withdraw_amount,omitempty"`
	LastWithdrawTime   *time.Time `json:"last_withdraw_time,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type Topup struct {
	TopupID     string    `json:"topup_id"`
	UserID      string    `json:"user_id"`
	Amount      int64     `json:"amount"`
	Method      string    `json:"method"`
	RequestedAt time.Time `json:"requested_at"`
}

type Withdraw struct {
	WithdrawID  string    `json:"withdraw_id"`
	UserID      string    `json:"user_id"`
	Amount      int64     `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

type Transfer struct {
	TransferID  string    `json:"transfer_id"`
	FromUserID  string    `json:"from_user_id"`
	ToUserID    string    `json:"to_user_id"`
	Amount      int64     `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

type TopupRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type WithdrawRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type TransferRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
}

type UpdateTransferRequest struct {
	TransferID string `json:"transfer_id"`
	Amount     int64  `json:"amount"`
}

type TopupResult struct {
	Topup   *Topup   `json:"topup"`
	Balance *Balance `json:"balance"`
}

type WithdrawResult struct {
	Withdraw *Withdraw `json:"withdraw"`
	Balance  *Balance  `json:"balance"`
}

type TransferResult struct {
	Transfer        *Transfer `json:"transfer"`
	SenderBalance   *Balance  `json:"sender_balance"`
	ReceiverBalance *Balance  `json:"receiver_balance"`
}
