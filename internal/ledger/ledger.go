package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"refbot/internal/models"
	"refbot/internal/storage"
)

// ReferralBonus is credited to both sides of a referral pair
const ReferralBonus = 100

// ErrSelfReferral is returned when an identity tries to refer itself
var ErrSelfReferral = errors.New("cannot refer yourself")

// Service implements the ledger operations over an account store.
// Every balance mutation goes through the store's atomic operations;
// nothing here reads a balance and writes it back separately.
type Service struct {
	store  storage.Store
	sink   storage.EventSink
	logger *zap.Logger
}

// New creates a ledger service. sink may be nil when no event log is
// configured.
func New(store storage.Store, sink storage.EventSink, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// CheckBalance returns the current balance, 0 for an unknown identity
func (s *Service) CheckBalance(ctx context.Context, identity string) (int64, error) {
	account, err := s.store.GetAccount(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to check balance: %w", err)
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// Credit adds amount to the identity's balance, creating the account if absent
func (s *Service) Credit(ctx context.Context, identity string, amount int64) (*models.Account, error) {
	account, err := s.store.CreditBalance(ctx, identity, amount)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, identity, models.EventCredit, amount)
	return account, nil
}

// Debit subtracts amount from the identity's balance. A debit that would
// drive the balance negative fails with storage.ErrInsufficientFunds and
// changes nothing.
func (s *Service) Debit(ctx context.Context, identity string, amount int64) (*models.Account, error) {
	account, err := s.store.DebitBalance(ctx, identity, amount)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, identity, models.EventDebit, amount)
	return account, nil
}

// ApplyReferral credits both the inviter and the invitee with the
// referral bonus. Both credits happen in one store transaction.
//
// Idempotency is the caller's obligation: applying the same pair twice
// double-credits both sides. The bot layer satisfies this with one-time
// referral tokens (see MintReferralToken / RedeemReferral).
func (s *Service) ApplyReferral(ctx context.Context, inviter, invitee string) (*models.Account, *models.Account, error) {
	if inviter == invitee {
		return nil, nil, ErrSelfReferral
	}

	a, b, err := s.store.CreditPair(ctx, inviter, invitee, ReferralBonus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply referral: %w", err)
	}

	s.recordEvent(ctx, inviter, models.EventReferral, ReferralBonus)
	s.recordEvent(ctx, invitee, models.EventReferral, ReferralBonus)
	return a, b, nil
}

// MintReferralToken creates a one-time token bound to the inviter
func (s *Service) MintReferralToken(ctx context.Context, inviter string) (string, error) {
	token := uuid.New().String()
	if err := s.store.CreateReferralToken(ctx, token, inviter); err != nil {
		return "", fmt.Errorf("failed to mint referral token: %w", err)
	}
	return token, nil
}

// RedeemReferral consumes a referral token and applies the pair bonus.
// A replayed or unknown token fails with storage.ErrTokenNotFound; a
// token redeemed by its own inviter fails with ErrSelfReferral (the
// token is consumed either way).
func (s *Service) RedeemReferral(ctx context.Context, token, invitee string) (*models.Account, *models.Account, error) {
	// The token column is a UUID, reject garbage before it reaches the store
	if _, err := uuid.Parse(token); err != nil {
		return nil, nil, storage.ErrTokenNotFound
	}

	inviter, err := s.store.RedeemReferralToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	return s.ApplyReferral(ctx, inviter, invitee)
}

// EventStats reports per-kind totals from the event sink
func (s *Service) EventStats(ctx context.Context) ([]models.EventStat, error) {
	if s.sink == nil {
		return nil, nil
	}
	return s.sink.EventStats(ctx)
}

func (s *Service) recordEvent(ctx context.Context, identity, kind string, amount int64) {
	if s.sink == nil {
		return
	}

	event := models.LedgerEvent{
		Identity: identity,
		Kind:     kind,
		Amount:   amount,
		At:       time.Now().UTC(),
	}
	if err := s.sink.RecordEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to record ledger event",
			zap.Error(err),
			zap.String("identity", identity),
			zap.String("kind", kind),
			zap.Int64("amount", amount),
		)
	}
}
