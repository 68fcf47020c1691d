package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/gate"
	"subgate-bot/internal/users"
)

const (
	askPhoneText     = "📲 To use this bot, you must share your phone number."
	sharePhoneButton = "📱 Send phone number"
	ownPhoneText     = "🚫 Please send your own phone number using the button."
	registeredText   = "✅ You have been successfully registered!"
	helpText         = "This bot is available to subscribers of our channels.\n\n" +
		"Commands:\n" +
		"/start - Register or show the welcome message\n" +
		"/help - Show this help message\n\n" +
		"If you are asked to join channels, join them and press ✅ Check."
	fallbackText = "I did not understand that. Use /help to see what I can do."
)

// Handler processes Telegram updates behind the subscription gate
type Handler struct {
	bot     botAPI
	users   users.Store
	gate    *gate.Middleware
	recheck *gate.Recheck
	logger  *slog.Logger
}

// NewHandler creates a new update handler. The recheck handler welcomes
// users through this handler once they pass, so it is built here.
func NewHandler(
	bot botAPI,
	userStore users.Store,
	middleware *gate.Middleware,
	newRecheck func(welcome gate.Welcome) *gate.Recheck,
	logger *slog.Logger,
) *Handler {
	h := &Handler{
		bot:    bot,
		users:  userStore,
		gate:   middleware,
		logger: logger,
	}
	h.recheck = newRecheck(h.welcome)
	return h
}

// HandleUpdate processes a single update
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := eventFromUpdate(update)
	if !ok {
		return
	}

	logger := h.logger.With(
		"request_id", uuid.NewString(),
		"update_id", update.UpdateID,
		"user_id", ev.UserID,
	)

	next := func(ctx context.Context, ev gate.Event) error {
		return h.route(ctx, update, ev)
	}
	if err := h.gate.Wrap(next)(ctx, ev); err != nil {
		logger.Error("update failed", "kind", ev.Kind.String(), "error", err)
		if ev.ChatID != 0 {
			h.sendText(ev.ChatID, apperrors.GetUserMessage(err))
		}
	}
}

func (h *Handler) route(ctx context.Context, update tgbotapi.Update, ev gate.Event) error {
	if cb := update.CallbackQuery; cb != nil {
		h.answerCallback(cb.ID)
		if ev.IsRecheck() {
			return h.recheck.Handle(ctx, ev)
		}
		h.logger.Debug("unhandled callback", "data", cb.Data, "user_id", ev.UserID)
		return nil
	}

	msg := update.Message
	if msg == nil {
		return nil
	}

	if msg.Contact != nil {
		return h.handleContact(ctx, msg, ev.ChatID)
	}

	if msg.IsCommand() {
		return h.handleCommand(ctx, msg, ev)
	}

	h.sendText(ev.ChatID, fallbackText)
	return nil
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message, ev gate.Event) error {
	switch msg.Command() {
	case "start":
		return h.welcome(ctx, ev)

	case "help":
		h.sendText(ev.ChatID, helpText)

	default:
		h.sendText(ev.ChatID, "Unknown command. Use /help for available commands.")
	}
	return nil
}

// welcome is where a user lands after /start or a successful recheck:
// registered users are greeted, everyone else is asked for a phone number
func (h *Handler) welcome(ctx context.Context, ev gate.Event) error {
	u, err := h.users.GetByTelegramID(ctx, ev.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		msg := tgbotapi.NewMessage(ev.ChatID, askPhoneText)
		keyboard := tgbotapi.NewOneTimeReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(sharePhoneButton)),
		)
		keyboard.ResizeKeyboard = true
		msg.ReplyMarkup = keyboard
		h.send(msg)
		return nil
	}
	if err != nil {
		return err
	}

	h.sendText(ev.ChatID, fmt.Sprintf("👋 Welcome, %s!", displayName(u)))
	return nil
}

func (h *Handler) handleContact(ctx context.Context, msg *tgbotapi.Message, chatID int64) error {
	contact := msg.Contact
	if contact.UserID != msg.From.ID {
		h.sendText(chatID, ownPhoneText)
		return nil
	}

	u, created, err := h.users.Register(ctx, users.User{
		TelegramID:  msg.From.ID,
		FirstName:   msg.From.FirstName,
		LastName:    msg.From.LastName,
		Language:    languageOf(msg.From.LanguageCode),
		PhoneNumber: normalizePhone(contact.PhoneNumber),
	})
	if err != nil {
		return err
	}
	if created {
		h.logger.Info("user registered", "user_id", u.TelegramID)
	}

	reply := tgbotapi.NewMessage(chatID, registeredText)
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	h.send(reply)
	return nil
}

func (h *Handler) answerCallback(id string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		h.logger.Debug("failed to answer callback", "error", err)
	}
}

func (h *Handler) sendText(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) send(msg tgbotapi.MessageConfig) {
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("failed to send message", "error", err, "chat_id", msg.ChatID)
	}
}

func displayName(u *users.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "there"
	}
	return name
}

// normalizePhone keeps the digits of a shared phone number
func normalizePhone(phone string) string {
	return strings.NewReplacer("+", "", " ", "", "-", "").Replace(strings.TrimSpace(phone))
}

func languageOf(code string) string {
	if len(code) < 2 {
		return "en"
	}
	return strings.ToLower(code[:2])
}
