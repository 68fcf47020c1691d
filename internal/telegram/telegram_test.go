package telegram

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"subgate-bot/internal/channels"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI records every outgoing call
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int

	sendErr    error
	requestErr error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 500 + f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

type stubResolver struct {
	mu      sync.Mutex
	missing []channels.Requirement
}

func (s *stubResolver) Resolve(context.Context, int64, time.Time) ([]channels.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missing, nil
}

func (s *stubResolver) set(missing []channels.Requirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing = missing
}

func textMessage(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: userID, FirstName: "Ada", LastName: "Lovelace", LanguageCode: "en-GB"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		n := len(text)
		for i, r := range text {
			if r == ' ' {
				n = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func contactMessage(userID, contactUserID int64, phone string) tgbotapi.Update {
	u := textMessage(userID, "")
	u.Message.Contact = &tgbotapi.Contact{PhoneNumber: phone, FirstName: "Ada", UserID: contactUserID}
	return u
}

func callback(userID int64, data string, messageID int) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: userID},
			Data: data,
			Message: &tgbotapi.Message{
				MessageID: messageID,
				Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
			},
		},
	}
}

func requirement(id int64, name string) channels.Requirement {
	return channels.Requirement{
		ID:         id,
		Name:       name,
		Link:       "https://t.me/" + name,
		ExternalID: -(1000 + id),
		IsActive:   true,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}
