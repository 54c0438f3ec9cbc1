package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"refbot/internal/ledger"
	"refbot/internal/storage/stubs"
	"refbot/internal/withdraw"
)

// Note: We can't easily mock tgbotapi.BotAPI, so tests focus on internal logic
// without actually sending messages to Telegram

func newTestBot() (*Bot, *stubs.MockStore) {
	store := stubs.NewMockStore()
	ledgerSvc := ledger.New(store, nil, zap.NewNop())
	flow := withdraw.NewFlow(ledgerSvc, store, withdraw.NewTracker(0), zap.NewNop())

	return &Bot{
		api:      nil, // Not needed for internal logic tests
		ledger:   ledgerSvc,
		flow:     flow,
		logger:   zap.NewNop(),
		username: "refbot_test_bot",
	}, store
}

func commandMessage(userID, chatID int64, text string, commandLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: commandLen}},
	}
}

func textMessage(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func TestBot_WithdrawConversation(t *testing.T) {
	bot, store := newTestBot()
	ctx := context.Background()

	userID := int64(123)
	chatID := int64(456)
	identity := identityFor(userID)

	// Seed a balance
	if _, err := store.CreditBalance(ctx, identity, 500); err != nil {
		t.Fatalf("Failed to credit balance: %v", err)
	}

	// Step 1: /withdraw starts the conversation
	bot.handleMessage(commandMessage(userID, chatID, "/withdraw", 9))

	if step := bot.flow.Step(identity); step != withdraw.StepAwaitingPayoutInfo {
		t.Fatalf("Expected StepAwaitingPayoutInfo, got %v", step)
	}

	// Step 2: payout details as free text
	bot.handleMessage(textMessage(userID, chatID, "08012345678, MTN"))

	if step := bot.flow.Step(identity); step != withdraw.StepAwaitingAmount {
		t.Fatalf("Expected StepAwaitingAmount, got %v", step)
	}

	account, err := store.GetAccount(ctx, identity)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.PayoutPhone != "08012345678" || account.PayoutNetwork != "MTN" {
		t.Errorf("Payout details not stored: %+v", account)
	}

	// Step 3: amount as free text completes the withdrawal
	bot.handleMessage(textMessage(userID, chatID, "200"))

	if step := bot.flow.Step(identity); step != withdraw.StepNone {
		t.Errorf("Expected StepNone after completion, got %v", step)
	}

	account, err = store.GetAccount(ctx, identity)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.Balance != 300 {
		t.Errorf("Expected balance 300, got %d", account.Balance)
	}
}

func TestBot_MalformedConversationInputKeepsStep(t *testing.T) {
	bot, _ := newTestBot()

	userID := int64(123)
	chatID := int64(456)
	identity := identityFor(userID)

	bot.handleMessage(commandMessage(userID, chatID, "/withdraw", 9))

	// No comma: stays on the payout info step
	bot.handleMessage(textMessage(userID, chatID, "garbage"))

	if step := bot.flow.Step(identity); step != withdraw.StepAwaitingPayoutInfo {
		t.Errorf("Expected StepAwaitingPayoutInfo after malformed input, got %v", step)
	}
}

func TestBot_CommandInterruptsWithdrawal(t *testing.T) {
	bot, _ := newTestBot()

	userID := int64(123)
	chatID := int64(456)
	identity := identityFor(userID)

	bot.handleMessage(commandMessage(userID, chatID, "/withdraw", 9))
	if step := bot.flow.Step(identity); step != withdraw.StepAwaitingPayoutInfo {
		t.Fatalf("Expected conversation to start, got %v", step)
	}

	// Any command cancels the in-flight conversation
	bot.handleMessage(commandMessage(userID, chatID, "/balance", 8))

	if step := bot.flow.Step(identity); step != withdraw.StepNone {
		t.Errorf("Expected conversation to be cancelled, got %v", step)
	}
}

func TestBot_ReferralDeepLink(t *testing.T) {
	bot, store := newTestBot()
	ctx := context.Background()

	inviterID := int64(111)
	inviteeID := int64(222)
	inviterIdentity := identityFor(inviterID)
	inviteeIdentity := identityFor(inviteeID)

	token, err := bot.ledger.MintReferralToken(ctx, inviterIdentity)
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}

	// Invitee opens the deep link: /start <token>
	bot.handleMessage(commandMessage(inviteeID, inviteeID, "/start "+token, 6))

	for _, identity := range []string{inviterIdentity, inviteeIdentity} {
		account, err := store.GetAccount(ctx, identity)
		if err != nil {
			t.Fatalf("Failed to get account: %v", err)
		}
		if account == nil || account.Balance != ledger.ReferralBonus {
			t.Errorf("Expected %s to hold the referral bonus, got %+v", identity, account)
		}
	}

	// Replaying the link credits nobody
	thirdID := int64(333)
	bot.handleMessage(commandMessage(thirdID, thirdID, "/start "+token, 6))

	account, err := store.GetAccount(ctx, identityFor(thirdID))
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account != nil {
		t.Errorf("Expected no account for replayed token, got %+v", account)
	}
}

func TestBot_SelfReferralRejected(t *testing.T) {
	bot, store := newTestBot()
	ctx := context.Background()

	userID := int64(123)
	identity := identityFor(userID)

	token, err := bot.ledger.MintReferralToken(ctx, identity)
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}

	bot.handleMessage(commandMessage(userID, userID, "/start "+token, 6))

	account, err := store.GetAccount(ctx, identity)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account != nil && account.Balance != 0 {
		t.Errorf("Expected no credit for self-referral, got %+v", account)
	}
}

func TestBot_CallbackCancelsWithdrawal(t *testing.T) {
	bot, _ := newTestBot()

	userID := int64(123)
	chatID := int64(456)
	identity := identityFor(userID)

	bot.handleMessage(commandMessage(userID, chatID, "/withdraw", 9))
	if step := bot.flow.Step(identity); step != withdraw.StepAwaitingPayoutInfo {
		t.Fatalf("Expected conversation to start, got %v", step)
	}

	bot.handleCallbackQuery(&tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: userID},
		Data:    "withdraw:cancel",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	})

	if step := bot.flow.Step(identity); step != withdraw.StepNone {
		t.Errorf("Expected conversation to be cancelled via callback, got %v", step)
	}
}

func TestBot_PlainTextOutsideConversationIgnored(t *testing.T) {
	bot, store := newTestBot()

	userID := int64(123)
	chatID := int64(456)

	// A random text message with no conversation in flight must not
	// create accounts or state
	bot.handleMessage(textMessage(userID, chatID, "hello there"))

	account, err := store.GetAccount(context.Background(), identityFor(userID))
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account != nil {
		t.Errorf("Expected no account, got %+v", account)
	}
}
