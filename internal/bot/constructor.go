package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"refbot/internal/ledger"
	"refbot/internal/withdraw"
)

// NewBot creates a new Telegram bot
func NewBot(token string, ledgerSvc *ledger.Service, flow *withdraw.Flow, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return &Bot{
		api:      api,
		ledger:   ledgerSvc,
		flow:     flow,
		logger:   logger,
		username: api.Self.UserName,
	}, nil
}

// identityFor maps a Telegram user ID to the ledger identity string
func identityFor(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// chatIDFor maps a ledger identity back to a private chat ID. Identities
// minted by this bot are always numeric user IDs.
func chatIDFor(identity string) (int64, error) {
	return strconv.ParseInt(identity, 10, 64)
}
