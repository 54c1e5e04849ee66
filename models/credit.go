package models

import "time"

// CreditTransactionType classifies append-only ledger entries.
type CreditTransactionType string

const (
	TransactionEnrollmentFee    CreditTransactionType = "enrollment_fee"
	TransactionWithdrawalRefund CreditTransactionType = "withdrawal_refund"
	TransactionRejectionRefund  CreditTransactionType = "rejection_refund"
	TransactionReward           CreditTransactionType = "reward"
	TransactionTopUp            CreditTransactionType = "top_up"
)

// CreditAccount holds a user's spendable balance. The balance is only
// mutated through the ledger's conditional primitives and is never
// negative at a committed state.
type CreditAccount struct {
	UserID    int       `json:"user_id"`
	Balance   int       `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditTransaction is an append-only ledger entry. Amount is signed:
// negative for debits, positive for credits.
type CreditTransaction struct {
	ID           int                   `json:"id"`
	Reference    string                `json:"reference"`
	UserID       int                   `json:"user_id"`
	Amount       int                   `json:"amount"`
	Type         CreditTransactionType `json:"type"`
	EnrollmentID *int                  `json:"enrollment_id,omitempty"`
	TournamentID *int                  `json:"tournament_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}
