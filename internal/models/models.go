package models

import (
	"time"
)

// Tab status values
const (
	TabStatusOpen   = "open"
	TabStatusClosed = "closed"
)

// Tab is one shared expense ledger. While a tab is open its settlement is
// recomputed from live balances; closing it freezes the transfer set.
type Tab struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Participant is one member of a tab. UserID is the external account that
// controls this participant; account management itself lives elsewhere.
type Participant struct {
	ID          string    `json:"id"`
	TabID       string    `json:"tab_id"`
	DisplayName string    `json:"display_name"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expense is one purchase paid by a single participant on behalf of the
// group. TotalAmountCents equals the sum of its splits.
type Expense struct {
	ID                 string    `json:"id"`
	TabID              string    `json:"tab_id"`
	PayerParticipantID string    `json:"payer_participant_id"`
	TotalAmountCents   int64     `json:"total_amount_cents"`
	Description        string    `json:"description"`
	CreatedAt          time.Time `json:"created_at"`
}

// Split is one participant's share of one expense.
type Split struct {
	ExpenseID     string `json:"expense_id"`
	ParticipantID string `json:"participant_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// Settlement is the frozen transfer set stored when a tab is closed.
type Settlement struct {
	ID        string    `json:"id"`
	TabID     string    `json:"tab_id"`
	CreatedAt time.Time `json:"created_at"`
}
