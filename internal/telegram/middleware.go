package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"subgate-bot/internal/gate"
)

// eventFromUpdate converts an update into the gate's event variant.
// Updates without a sender cannot be gated and are reported as not ok.
func eventFromUpdate(update tgbotapi.Update) (gate.Event, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return gate.Event{}, false
		}
		ev := gate.Event{
			Kind:      gate.EventMessage,
			UserID:    msg.From.ID,
			ChatID:    msg.From.ID,
			MessageID: msg.MessageID,
			Text:      msg.Text,
		}
		if msg.Chat != nil {
			ev.ChatID = msg.Chat.ID
		}
		return ev, true

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil {
			return gate.Event{}, false
		}
		ev := gate.Event{
			Kind:         gate.EventCallback,
			UserID:       cb.From.ID,
			ChatID:       cb.From.ID,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.Message != nil {
			ev.MessageID = cb.Message.MessageID
			if cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
		return ev, true

	default:
		if user := update.SentFrom(); user != nil {
			return gate.Event{Kind: gate.EventOther, UserID: user.ID}, true
		}
		return gate.Event{}, false
	}
}
