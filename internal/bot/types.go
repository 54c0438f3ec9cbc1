package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"refbot/internal/ledger"
	"refbot/internal/withdraw"
)

// Bot wraps the Telegram transport around the ledger core. It resolves
// Telegram user IDs to ledger identities, routes commands and free-text
// messages, and delivers the core's prompts and receipts as replies.
type Bot struct {
	api      *tgbotapi.BotAPI
	ledger   *ledger.Service
	flow     *withdraw.Flow
	logger   *zap.Logger
	username string
}
