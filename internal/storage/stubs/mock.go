package stubs

import (
	"context"
	"fmt"
	"sync"

	"refbot/internal/models"
	"refbot/internal/storage"
)

// MockStore is an in-memory implementation of the Store interface for testing
type MockStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	tokens   map[string]string
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*models.Account),
		tokens:   make(map[string]string),
	}
}

// Initialize does nothing for the mock store
func (m *MockStore) Initialize(ctx context.Context) error {
	return nil
}

// GetAccount returns the account for identity, or nil if unknown
func (m *MockStore) GetAccount(ctx context.Context, identity string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[identity]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

// UpsertAccount returns the existing account unchanged, or creates one
// with the given initial balance
func (m *MockStore) UpsertAccount(ctx context.Context, identity string, initialBalance int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.upsertLocked(identity, initialBalance)
	copied := *account
	return &copied, nil
}

// CreditBalance adds amount to the balance, creating the account if absent
func (m *MockStore) CreditBalance(ctx context.Context, identity string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.creditLocked(identity, amount)
	copied := *account
	return &copied, nil
}

// DebitBalance subtracts amount, rejecting overdrafts
func (m *MockStore) DebitBalance(ctx context.Context, identity string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[identity]
	if !ok || account.Balance < amount {
		return nil, storage.ErrInsufficientFunds
	}
	account.Balance -= amount
	copied := *account
	return &copied, nil
}

// SetPayoutDetails overwrites the payout phone and network
func (m *MockStore) SetPayoutDetails(ctx context.Context, identity, phone, network string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account := m.upsertLocked(identity, 0)
	account.PayoutPhone = phone
	account.PayoutNetwork = network
	copied := *account
	return &copied, nil
}

// CreditPair credits both identities under a single lock so the pair is atomic
func (m *MockStore) CreditPair(ctx context.Context, first, second string, amount int64) (*models.Account, *models.Account, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.creditLocked(first, amount)
	b := m.creditLocked(second, amount)
	copiedA := *a
	copiedB := *b
	return &copiedA, &copiedB, nil
}

// CreateReferralToken stores a one-time referral token
func (m *MockStore) CreateReferralToken(ctx context.Context, token, inviter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[token] = inviter
	return nil
}

// RedeemReferralToken consumes a token and returns its inviter
func (m *MockStore) RedeemReferralToken(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inviter, ok := m.tokens[token]
	if !ok {
		return "", storage.ErrTokenNotFound
	}
	delete(m.tokens, token)
	return inviter, nil
}

// Close does nothing for the mock store
func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) upsertLocked(identity string, initialBalance int64) *models.Account {
	account, ok := m.accounts[identity]
	if !ok {
		account = &models.Account{Identity: identity, Balance: initialBalance}
		m.accounts[identity] = account
	}
	return account
}

func (m *MockStore) creditLocked(identity string, amount int64) *models.Account {
	account := m.upsertLocked(identity, 0)
	account.Balance += amount
	return account
}

// MockSink is an in-memory EventSink that records events for assertions
type MockSink struct {
	mu     sync.Mutex
	events []models.LedgerEvent
}

// NewMockSink creates a new mock event sink
func NewMockSink() *MockSink {
	return &MockSink{}
}

// RecordEvent appends the event
func (s *MockSink) RecordEvent(ctx context.Context, event models.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// EventStats aggregates recorded events by kind
func (s *MockSink) EventStats(ctx context.Context) ([]models.EventStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind := make(map[string]*models.EventStat)
	var order []string
	for _, event := range s.events {
		stat, ok := byKind[event.Kind]
		if !ok {
			stat = &models.EventStat{Kind: event.Kind}
			byKind[event.Kind] = stat
			order = append(order, event.Kind)
		}
		stat.Count++
		stat.Amount += event.Amount
	}

	stats := make([]models.EventStat, 0, len(order))
	for _, kind := range order {
		stats = append(stats, *byKind[kind])
	}
	return stats, nil
}

// Events returns a snapshot of recorded events
func (s *MockSink) Events() []models.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]models.LedgerEvent, len(s.events))
	copy(snapshot, s.events)
	return snapshot
}

// Close does nothing for the mock sink
func (s *MockSink) Close() error {
	return nil
}
