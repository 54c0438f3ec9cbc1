package models

import "time"

// Account is a user's ledger record, keyed by the external chat identity
type Account struct {
	Identity      string
	Balance       int64
	PayoutPhone   string
	PayoutNetwork string
}

// Receipt reports a completed withdrawal
type Receipt struct {
	Amount     int64
	NewBalance int64
}

// Event kinds recorded in the ledger event log
const (
	EventCredit   = "credit"
	EventDebit    = "debit"
	EventReferral = "referral"
)

// LedgerEvent is an append-only record of a balance mutation
type LedgerEvent struct {
	Identity string
	Kind     string
	Amount   int64
	At       time.Time
}

// EventStat aggregates ledger events of one kind
type EventStat struct {
	Kind   string
	Count  uint64
	Amount int64
}
