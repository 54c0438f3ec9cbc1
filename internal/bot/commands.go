package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"refbot/internal/ledger"
	"refbot/internal/storage"
)

// handleStart shows the welcome message. A deep-link payload is a
// one-time referral token minted by /ref; redeeming it credits both the
// inviter and this user.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message, identity string) {
	if payload := message.CommandArguments(); payload != "" {
		b.redeemReferral(ctx, message, identity, strings.TrimSpace(payload))
		return
	}

	text := `Hello! I am your bot. 💰

Available commands:
/balance - Check your balance
/withdraw - Withdraw your balance
/ref - Get your referral link
/stats - Ledger activity totals`

	b.sendText(message.Chat.ID, text)
}

// redeemReferral consumes a referral token and notifies both parties of
// their new balances
func (b *Bot) redeemReferral(ctx context.Context, message *tgbotapi.Message, identity, token string) {
	inviterAccount, inviteeAccount, err := b.ledger.RedeemReferral(ctx, token, identity)
	switch {
	case errors.Is(err, storage.ErrTokenNotFound):
		b.sendText(message.Chat.ID, "This referral link is invalid or has already been used.")
		return
	case errors.Is(err, ledger.ErrSelfReferral):
		b.sendText(message.Chat.ID, "You cannot use your own referral link.")
		return
	case err != nil:
		b.logger.Error("Failed to redeem referral", zap.Error(err), zap.String("identity", identity))
		b.sendText(message.Chat.ID, "Something went wrong applying the referral. Please try again.")
		return
	}

	b.sendText(message.Chat.ID, fmt.Sprintf("Welcome! You received %d units for joining via a referral link. Your balance: %d",
		ledger.ReferralBonus, inviteeAccount.Balance))

	inviterChatID, err := chatIDFor(inviterAccount.Identity)
	if err != nil {
		b.logger.Warn("Cannot notify inviter, identity is not a chat ID",
			zap.String("inviter", inviterAccount.Identity))
		return
	}
	b.sendText(inviterChatID, fmt.Sprintf("Someone joined via your referral link! You received %d units. Your balance: %d",
		ledger.ReferralBonus, inviterAccount.Balance))
}

// handleBalance reports the current balance, 0 for a fresh user
func (b *Bot) handleBalance(ctx context.Context, message *tgbotapi.Message, identity string) {
	balance, err := b.ledger.CheckBalance(ctx, identity)
	if err != nil {
		b.logger.Error("Failed to check balance", zap.Error(err), zap.String("identity", identity))
		b.sendText(message.Chat.ID, "Could not fetch your balance. Please try again.")
		return
	}

	b.sendText(message.Chat.ID, fmt.Sprintf("Your balance: %d units", balance))
}

// handleWithdrawStart begins the withdrawal conversation
func (b *Bot) handleWithdrawStart(ctx context.Context, message *tgbotapi.Message, identity string) {
	prompt, err := b.flow.Begin(ctx, identity)
	if err != nil {
		b.logger.Error("Failed to begin withdrawal", zap.Error(err), zap.String("identity", identity))
		b.sendText(message.Chat.ID, "Could not start a withdrawal. Please try again.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "withdraw:cancel"),
		),
	)
	b.sendMessage(msg)
}

// handleRef mints a one-time referral token and returns a deep link
func (b *Bot) handleRef(ctx context.Context, message *tgbotapi.Message, identity string) {
	token, err := b.ledger.MintReferralToken(ctx, identity)
	if err != nil {
		b.logger.Error("Failed to mint referral token", zap.Error(err), zap.String("identity", identity))
		b.sendText(message.Chat.ID, "Could not create a referral link. Please try again.")
		return
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", b.username, token)
	b.sendText(message.Chat.ID, fmt.Sprintf("Share this link to earn %d units per friend (they get %d too):\n%s\n\nEach link works once. Use /ref again for another.",
		ledger.ReferralBonus, ledger.ReferralBonus, link))
}

// handleStats reports per-kind ledger activity from the event sink
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.ledger.EventStats(ctx)
	if err != nil {
		b.logger.Error("Failed to fetch event stats", zap.Error(err))
		b.sendText(message.Chat.ID, "Could not fetch stats. Please try again.")
		return
	}

	if len(stats) == 0 {
		b.sendText(message.Chat.ID, "No ledger activity recorded yet.")
		return
	}

	var text strings.Builder
	text.WriteString("Ledger activity:\n\n")
	for _, stat := range stats {
		text.WriteString(fmt.Sprintf("%s: %d events, %d units total\n", stat.Kind, stat.Count, stat.Amount))
	}

	b.sendText(message.Chat.ID, text.String())
}
