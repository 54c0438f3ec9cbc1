package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"refbot/internal/storage"
	"refbot/internal/withdraw"
)

// handleWithdrawConversation routes a free-text message to the step the
// user is currently in. Validation errors keep the step unchanged so the
// user can simply send a corrected message.
func (b *Bot) handleWithdrawConversation(ctx context.Context, message *tgbotapi.Message, identity string) {
	switch b.flow.Step(identity) {
	case withdraw.StepAwaitingPayoutInfo:
		b.handlePayoutInfoMessage(ctx, message, identity)
	case withdraw.StepAwaitingAmount:
		b.handleAmountMessage(ctx, message, identity)
	}
}

func (b *Bot) handlePayoutInfoMessage(ctx context.Context, message *tgbotapi.Message, identity string) {
	prompt, err := b.flow.SubmitPayoutInfo(ctx, identity, message.Text)
	switch {
	case errors.Is(err, withdraw.ErrMalformedInput):
		b.sendText(message.Chat.ID, "Could not read that. Send your payout details as: phone, network\n\nExample: 08012345678, MTN")
		return
	case errors.Is(err, withdraw.ErrUnexpectedStep):
		return
	case err != nil:
		b.logger.Error("Failed to save payout details", zap.Error(err), zap.String("identity", identity))
		b.sendText(message.Chat.ID, "Something went wrong. Please try again.")
		return
	}

	b.sendText(message.Chat.ID, prompt)
}

func (b *Bot) handleAmountMessage(ctx context.Context, message *tgbotapi.Message, identity string) {
	receipt, err := b.flow.SubmitAmount(ctx, identity, message.Text)
	switch {
	case errors.Is(err, withdraw.ErrMalformedAmount):
		b.sendText(message.Chat.ID, "Please send a whole positive number, e.g. 200")
		return
	case errors.Is(err, storage.ErrInsufficientFunds):
		balance, balErr := b.ledger.CheckBalance(ctx, identity)
		if balErr != nil {
			b.sendText(message.Chat.ID, "You don't have enough balance for that amount. Try a smaller one.")
			return
		}
		b.sendText(message.Chat.ID, fmt.Sprintf("You don't have enough balance for that amount. You have %d units. Try a smaller one.", balance))
		return
	case errors.Is(err, withdraw.ErrUnexpectedStep):
		return
	case err != nil:
		b.logger.Error("Failed to process withdrawal", zap.Error(err), zap.String("identity", identity))
		b.sendText(message.Chat.ID, "Something went wrong processing your withdrawal. Please try again.")
		return
	}

	b.sendText(message.Chat.ID, fmt.Sprintf("Withdrawal of %d units is on its way! 🎉\nRemaining balance: %d units",
		receipt.Amount, receipt.NewBalance))
}
