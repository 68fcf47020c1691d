package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const startedText = "✅ Bot successfully started"

// botCommands are shown in the client's command menu
var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start bot"},
	{Command: "help", Description: "Get help"},
}

func setCommands(api botAPI) error {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}

type adminLister interface {
	AdminIDs(ctx context.Context) ([]int64, error)
}

// notifyAdmins sends text to every administrator. Failures are logged per
// recipient and do not stop the others.
func notifyAdmins(ctx context.Context, api botAPI, admins adminLister, text string, logger *slog.Logger) {
	ids, err := admins.AdminIDs(ctx)
	if err != nil {
		logger.Error("failed to list admins", "error", err)
		return
	}

	for _, id := range ids {
		if _, err := api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			logger.Warn("failed to notify admin", "user_id", id, "error", err)
		}

		// Stay well under the per-second send limit
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}
