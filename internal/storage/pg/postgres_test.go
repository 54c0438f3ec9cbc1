package pg

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"

	"refbot/internal/storage"
)

// runMigrations manually creates the ledger schema, mirroring
// migrations/ without pulling goose into the test
func runMigrations(ctx context.Context, db *PostgresStore) error {
	_, _ = db.pool.Exec(ctx, "DROP TABLE IF EXISTS referral_tokens")
	_, _ = db.pool.Exec(ctx, "DROP TABLE IF EXISTS accounts")

	_, err := db.pool.Exec(ctx, `
		CREATE TABLE accounts (
			identity TEXT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			payout_phone TEXT,
			payout_network TEXT
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		CREATE TABLE referral_tokens (
			token UUID PRIMARY KEY,
			inviter TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// setupTestDB creates a test Postgres instance using testcontainers
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	// Start Postgres container
	postgresContainer, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("refbot_test"),
		postgresTC.WithUsername("postgres"),
		postgresTC.WithPassword("test"),
		postgresTC.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start Postgres container")

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Create database connection
	db, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err, "Failed to connect to Postgres")

	err = runMigrations(ctx, db)
	require.NoError(t, err, "Failed to run migrations")

	// Cleanup function
	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestPostgresStore_CreditCreatesAccount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	account, err := db.CreditBalance(ctx, "user-1", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(250), account.Balance)

	// Unknown identity reads as nil
	missing, err := db.GetAccount(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	fetched, err := db.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, int64(250), fetched.Balance)
}

func TestPostgresStore_UpsertKeepsExistingBalance(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.CreditBalance(ctx, "user-1", 100)
	require.NoError(t, err)

	account, err := db.UpsertAccount(ctx, "user-1", 999)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)

	fresh, err := db.UpsertAccount(ctx, "user-2", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), fresh.Balance)
}

func TestPostgresStore_DebitBalance(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.CreditBalance(ctx, "user-1", 100)
	require.NoError(t, err)

	// Overdraft is rejected without touching the row
	_, err = db.DebitBalance(ctx, "user-1", 150)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)

	account, err := db.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)

	// Unknown identity reads as balance 0
	_, err = db.DebitBalance(ctx, "nobody", 1)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)

	account, err = db.DebitBalance(ctx, "user-1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
}

func TestPostgresStore_SetPayoutDetails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	// Works for a previously-unseen identity
	account, err := db.SetPayoutDetails(ctx, "user-1", "08012345678", "MTN")
	require.NoError(t, err)
	assert.Equal(t, "08012345678", account.PayoutPhone)
	assert.Equal(t, "MTN", account.PayoutNetwork)
	assert.Equal(t, int64(0), account.Balance)

	// Overwrites on a second submission
	account, err = db.SetPayoutDetails(ctx, "user-1", "08087654321", "Airtel")
	require.NoError(t, err)
	assert.Equal(t, "08087654321", account.PayoutPhone)
	assert.Equal(t, "Airtel", account.PayoutNetwork)
}

func TestPostgresStore_CreditPair(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	a, b, err := db.CreditPair(ctx, "inviter", "invitee", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
	assert.Equal(t, int64(100), b.Balance)

	// Second application double-credits (not idempotent by design)
	a, b, err = db.CreditPair(ctx, "inviter", "invitee", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), a.Balance)
	assert.Equal(t, int64(200), b.Balance)
}

func TestPostgresStore_ReferralTokenRedeemedOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := uuid.New().String()

	err := db.CreateReferralToken(ctx, token, "inviter")
	require.NoError(t, err)

	inviter, err := db.RedeemReferralToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "inviter", inviter)

	// Replay fails
	_, err = db.RedeemReferralToken(ctx, token)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestPostgresStore_ConcurrentDebits(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.CreditBalance(ctx, "user-1", 100)
	require.NoError(t, err)

	// Two racing debits of 60 against 100: the conditional UPDATE lets
	// exactly one through
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.DebitBalance(ctx, "user-1", 60)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
			insufficient++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	account, err := db.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), account.Balance)
}

func TestPostgresStore_Close(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.Close()
	assert.NoError(t, err)

	// Second close should not panic
	err = db.Close()
	assert.NoError(t, err)
}
