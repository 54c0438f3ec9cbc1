package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"refbot/internal/withdraw"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.sendText(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	identity := identityFor(message.From.ID)
	ctx := context.Background()

	// A command interrupts any in-flight withdrawal conversation
	if b.flow.Step(identity) != withdraw.StepNone {
		if message.IsCommand() {
			b.flow.Cancel(identity)
		} else {
			b.handleWithdrawConversation(ctx, message, identity)
			return
		}
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message, identity)
	case "balance":
		b.handleBalance(ctx, message, identity)
	case "withdraw":
		b.handleWithdrawStart(ctx, message, identity)
	case "ref":
		b.handleRef(ctx, message, identity)
	case "stats":
		b.handleStats(ctx, message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}
