package storage

import (
	"context"
	"errors"

	"refbot/internal/models"
)

// ErrInsufficientFunds is returned by DebitBalance when the debit would
// drive the balance below zero. The balance is left unchanged.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrTokenNotFound is returned when a referral token does not exist or
// has already been redeemed.
var ErrTokenNotFound = errors.New("referral token not found")

// Store defines the interface for account storage operations.
//
// CreditBalance, DebitBalance and CreditPair must be atomic
// read-modify-write operations: two racing debits for the same identity
// must never drive the balance negative, and the two credits of
// CreditPair must both happen or neither.
type Store interface {
	// GetAccount returns the account for identity, or nil if unknown
	GetAccount(ctx context.Context, identity string) (*models.Account, error)

	// UpsertAccount returns the existing account unchanged, or creates
	// one with the given initial balance
	UpsertAccount(ctx context.Context, identity string, initialBalance int64) (*models.Account, error)

	// CreditBalance adds amount to the balance, creating the account
	// with balance 0 first if absent. amount must be positive.
	CreditBalance(ctx context.Context, identity string, amount int64) (*models.Account, error)

	// DebitBalance subtracts amount from the balance, failing with
	// ErrInsufficientFunds when amount exceeds the current balance.
	// An unknown identity is treated as balance 0.
	DebitBalance(ctx context.Context, identity string, amount int64) (*models.Account, error)

	// SetPayoutDetails overwrites the payout phone and network
	SetPayoutDetails(ctx context.Context, identity, phone, network string) (*models.Account, error)

	// CreditPair credits both identities by amount in one transaction
	CreditPair(ctx context.Context, first, second string, amount int64) (*models.Account, *models.Account, error)

	// Referral token operations. RedeemReferralToken consumes the token:
	// a second redemption fails with ErrTokenNotFound.
	CreateReferralToken(ctx context.Context, token, inviter string) error
	RedeemReferralToken(ctx context.Context, token string) (string, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// EventSink receives the append-only ledger event log. Recording is
// best-effort: callers log sink failures but never fail the user
// operation over them.
type EventSink interface {
	RecordEvent(ctx context.Context, event models.LedgerEvent) error
	EventStats(ctx context.Context) ([]models.EventStat, error)
	Close() error
}
