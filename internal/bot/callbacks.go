package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	// Answer the callback query to remove the loading state
	if b.api != nil {
		b.api.Request(tgbotapi.NewCallback(query.ID, ""))
	}

	identity := identityFor(query.From.ID)

	switch query.Data {
	case "withdraw:cancel":
		b.flow.Cancel(identity)
		if query.Message != nil {
			b.sendText(query.Message.Chat.ID, "Withdrawal cancelled.")
		}
	}
}
