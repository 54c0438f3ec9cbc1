package withdraw

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"refbot/internal/ledger"
	"refbot/internal/models"
	"refbot/internal/storage"
)

var (
	// ErrUnexpectedStep is returned when a submission arrives while the
	// identity is not in the matching step. Nothing changes.
	ErrUnexpectedStep = errors.New("unexpected withdrawal step")

	// ErrMalformedInput is returned when payout details do not split
	// into exactly two non-empty comma-separated fields
	ErrMalformedInput = errors.New("malformed payout details")

	// ErrMalformedAmount is returned when the amount text is not a
	// positive integer
	ErrMalformedAmount = errors.New("malformed withdrawal amount")
)

// Prompts returned to the transport layer for delivery
const (
	PromptPayoutInfo = "Please send your payout details as: phone, network\n\nExample: 08012345678, MTN"
	PromptAmount     = "How much would you like to withdraw? Send a whole number."
)

// Flow drives the two-step withdrawal dialogue:
//
//	NONE -> AWAITING_PAYOUT_INFO -> AWAITING_AMOUNT -> NONE
//
// Payout details and amount arrive as separate free-text messages, so
// the tracker step is what correlates the second message with the first.
type Flow struct {
	ledger  *ledger.Service
	store   storage.Store
	tracker *Tracker
	logger  *zap.Logger
}

// NewFlow creates a withdrawal flow
func NewFlow(ledgerSvc *ledger.Service, store storage.Store, tracker *Tracker, logger *zap.Logger) *Flow {
	return &Flow{
		ledger:  ledgerSvc,
		store:   store,
		tracker: tracker,
		logger:  logger,
	}
}

// Step returns the identity's current step
func (f *Flow) Step(identity string) Step {
	return f.tracker.Step(identity)
}

// Cancel aborts any in-flight withdrawal for the identity
func (f *Flow) Cancel(identity string) {
	f.tracker.Clear(identity)
}

// Begin ensures the account exists and moves the identity to
// AWAITING_PAYOUT_INFO. Returns the prompt to deliver.
func (f *Flow) Begin(ctx context.Context, identity string) (string, error) {
	if _, err := f.store.UpsertAccount(ctx, identity, 0); err != nil {
		return "", fmt.Errorf("failed to begin withdrawal: %w", err)
	}

	f.tracker.Set(identity, StepAwaitingPayoutInfo)
	return PromptPayoutInfo, nil
}

// SubmitPayoutInfo parses "phone, network", stores the payout details and
// moves the identity to AWAITING_AMOUNT. Malformed input leaves the step
// unchanged so the user can retry.
func (f *Flow) SubmitPayoutInfo(ctx context.Context, identity, rawText string) (string, error) {
	if f.tracker.Step(identity) != StepAwaitingPayoutInfo {
		return "", ErrUnexpectedStep
	}

	phone, network, ok := parsePayoutInfo(rawText)
	if !ok {
		return "", ErrMalformedInput
	}

	if _, err := f.store.SetPayoutDetails(ctx, identity, phone, network); err != nil {
		return "", fmt.Errorf("failed to save payout details: %w", err)
	}

	f.tracker.Set(identity, StepAwaitingAmount)
	return PromptAmount, nil
}

// SubmitAmount parses the amount and debits the balance. Malformed
// amounts and insufficient funds leave the step at AWAITING_AMOUNT so
// the user can retry with a different value; on success the step resets
// to NONE and a receipt is returned.
func (f *Flow) SubmitAmount(ctx context.Context, identity, rawText string) (*models.Receipt, error) {
	if f.tracker.Step(identity) != StepAwaitingAmount {
		return nil, ErrUnexpectedStep
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(rawText), 10, 64)
	if err != nil || amount <= 0 {
		return nil, ErrMalformedAmount
	}

	account, err := f.ledger.Debit(ctx, identity, amount)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	f.tracker.Clear(identity)
	f.logger.Info("Withdrawal completed",
		zap.String("identity", identity),
		zap.Int64("amount", amount),
		zap.Int64("new_balance", account.Balance),
	)

	return &models.Receipt{Amount: amount, NewBalance: account.Balance}, nil
}

// parsePayoutInfo splits rawText into exactly two non-empty trimmed
// fields
func parsePayoutInfo(rawText string) (phone, network string, ok bool) {
	parts := strings.Split(rawText, ",")
	if len(parts) != 2 {
		return "", "", false
	}

	phone = strings.TrimSpace(parts[0])
	network = strings.TrimSpace(parts[1])
	if phone == "" || network == "" {
		return "", "", false
	}
	return phone, network, true
}
