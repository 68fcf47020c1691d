package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/gate"
)

// botAPI is the part of *tgbotapi.BotAPI used for outgoing messages
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Messenger renders gate prompts as Telegram messages with inline keyboards
type Messenger struct {
	api botAPI
}

var _ gate.Messenger = (*Messenger)(nil)

// NewMessenger creates a messenger
func NewMessenger(api botAPI) *Messenger {
	return &Messenger{api: api}
}

// SendPrompt sends p as a new message and returns its id
func (m *Messenger) SendPrompt(_ context.Context, chatID int64, p gate.Prompt) (int, error) {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	msg.ReplyMarkup = inlineKeyboard(p)

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, classifyUIError(err)
	}
	return sent.MessageID, nil
}

// EditPrompt replaces the text and keyboard of an existing message
func (m *Messenger) EditPrompt(_ context.Context, chatID int64, messageID int, p gate.Prompt) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, p.Text, inlineKeyboard(p))
	if _, err := m.api.Request(edit); err != nil {
		return classifyUIError(err)
	}
	return nil
}

// DeletePrompt removes a message
func (m *Messenger) DeletePrompt(_ context.Context, chatID int64, messageID int) error {
	if _, err := m.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return classifyUIError(err)
	}
	return nil
}

func inlineKeyboard(p gate.Prompt) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(p.Rows))
	for _, row := range p.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// uiNoOpMessages are Bot API descriptions for mutations that found the
// chat already in the wanted state
var uiNoOpMessages = []string{
	"message is not modified",
	"message to delete not found",
}

func classifyUIError(err error) error {
	msg := err.Error()
	for _, s := range uiNoOpMessages {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", apperrors.ErrUINoOp, err)
		}
	}
	return err
}
