package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refbot/internal/models"
	"refbot/internal/storage"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *PostgresStore) Initialize(ctx context.Context) error {
	// Tables are managed via migrations (see migrations/ directory)
	return nil
}

// GetAccount returns the account for identity, or nil if unknown
func (db *PostgresStore) GetAccount(ctx context.Context, identity string) (*models.Account, error) {
	var account models.Account
	err := db.pool.QueryRow(ctx,
		`SELECT identity, balance, COALESCE(payout_phone, ''), COALESCE(payout_network, '')
		 FROM accounts WHERE identity = $1`, identity).
		Scan(&account.Identity, &account.Balance, &account.PayoutPhone, &account.PayoutNetwork)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// UpsertAccount returns the existing account unchanged, or creates one
// with the given initial balance
func (db *PostgresStore) UpsertAccount(ctx context.Context, identity string, initialBalance int64) (*models.Account, error) {
	var account models.Account
	err := db.pool.QueryRow(ctx,
		`INSERT INTO accounts (identity, balance) VALUES ($1, $2)
		 ON CONFLICT (identity) DO UPDATE SET identity = accounts.identity
		 RETURNING identity, balance, COALESCE(payout_phone, ''), COALESCE(payout_network, '')`,
		identity, initialBalance).
		Scan(&account.Identity, &account.Balance, &account.PayoutPhone, &account.PayoutNetwork)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return &account, nil
}

// CreditBalance adds amount to the balance, creating the account if absent.
// The upsert makes the read-modify-write a single statement, so racing
// credits cannot lose updates.
func (db *PostgresStore) CreditBalance(ctx context.Context, identity string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	account, err := creditRow(ctx, db.pool, identity, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return account, nil
}

// DebitBalance subtracts amount, rejecting overdrafts. The balance guard
// is part of the UPDATE predicate: an unknown identity or a balance below
// amount matches no row and the debit fails without changing anything.
func (db *PostgresStore) DebitBalance(ctx context.Context, identity string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	var account models.Account
	err := db.pool.QueryRow(ctx,
		`UPDATE accounts SET balance = balance - $2
		 WHERE identity = $1 AND balance >= $2
		 RETURNING identity, balance, COALESCE(payout_phone, ''), COALESCE(payout_network, '')`,
		identity, amount).
		Scan(&account.Identity, &account.Balance, &account.PayoutPhone, &account.PayoutNetwork)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}
	return &account, nil
}

// SetPayoutDetails overwrites the payout phone and network
func (db *PostgresStore) SetPayoutDetails(ctx context.Context, identity, phone, network string) (*models.Account, error) {
	var account models.Account
	err := db.pool.QueryRow(ctx,
		`INSERT INTO accounts (identity, balance, payout_phone, payout_network) VALUES ($1, 0, $2, $3)
		 ON CONFLICT (identity) DO UPDATE SET payout_phone = $2, payout_network = $3
		 RETURNING identity, balance, COALESCE(payout_phone, ''), COALESCE(payout_network, '')`,
		identity, phone, network).
		Scan(&account.Identity, &account.Balance, &account.PayoutPhone, &account.PayoutNetwork)
	if err != nil {
		return nil, fmt.Errorf("failed to set payout details: %w", err)
	}
	return &account, nil
}

// CreditPair credits both identities in one transaction so a crash between
// the two credits cannot leave only one of them credited
func (db *PostgresStore) CreditPair(ctx context.Context, first, second string, amount int64) (*models.Account, *models.Account, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := creditRow(ctx, tx, first, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to credit %s: %w", first, err)
	}

	b, err := creditRow(ctx, tx, second, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to credit %s: %w", second, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit credit pair: %w", err)
	}
	return a, b, nil
}

// CreateReferralToken stores a one-time referral token
func (db *PostgresStore) CreateReferralToken(ctx context.Context, token, inviter string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO referral_tokens (token, inviter) VALUES ($1, $2)`, token, inviter)
	if err != nil {
		return fmt.Errorf("failed to create referral token: %w", err)
	}
	return nil
}

// RedeemReferralToken consumes a token and returns its inviter. The
// DELETE ... RETURNING makes redemption at-most-once: the second caller
// matches no row and gets ErrTokenNotFound.
func (db *PostgresStore) RedeemReferralToken(ctx context.Context, token string) (string, error) {
	var inviter string
	err := db.pool.QueryRow(ctx,
		`DELETE FROM referral_tokens WHERE token = $1 RETURNING inviter`, token).
		Scan(&inviter)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to redeem referral token: %w", err)
	}
	return inviter, nil
}

// Close closes the connection pool
func (db *PostgresStore) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func creditRow(ctx context.Context, q rowQuerier, identity string, amount int64) (*models.Account, error) {
	var account models.Account
	err := q.QueryRow(ctx,
		`INSERT INTO accounts (identity, balance) VALUES ($1, $2)
		 ON CONFLICT (identity) DO UPDATE SET balance = accounts.balance + $2
		 RETURNING identity, balance, COALESCE(payout_phone, ''), COALESCE(payout_network, '')`,
		identity, amount).
		Scan(&account.Identity, &account.Balance, &account.PayoutPhone, &account.PayoutNetwork)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
