package gate

import (
	"context"
	"fmt"
	"sync"

	"subgate-bot/internal/channels"
)

// CheckCallbackData is the callback payload of the check button
const CheckCallbackData = "check_subscription"

// Button is one inline keyboard button. Exactly one of URL and
// CallbackData is set.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// Prompt is a message with an inline keyboard, one button per row
type Prompt struct {
	Text string
	Rows [][]Button
}

// Messenger renders prompts on the chat platform. EditPrompt returns an
// error wrapping apperrors.ErrUINoOp when the message already shows p.
type Messenger interface {
	SendPrompt(ctx context.Context, chatID int64, p Prompt) (int, error)
	EditPrompt(ctx context.Context, chatID int64, messageID int, p Prompt) error
	DeletePrompt(ctx context.Context, chatID int64, messageID int) error
}

// SubscribePrompt is the first prompt shown to a blocked user
func SubscribePrompt(missing []channels.Requirement) Prompt {
	return Prompt{
		Text: fmt.Sprintf("📢 Please subscribe to the following %d channels first:", len(missing)),
		Rows: keyboard(missing),
	}
}

// StillMissingPrompt replaces the prompt after an unsuccessful recheck
func StillMissingPrompt(missing []channels.Requirement) Prompt {
	return Prompt{
		Text: fmt.Sprintf("🚫 You still need to join %d channels.", len(missing)),
		Rows: keyboard(missing),
	}
}

func keyboard(missing []channels.Requirement) [][]Button {
	rows := make([][]Button, 0, len(missing)+1)
	for _, r := range missing {
		rows = append(rows, []Button{{Text: "📢 " + r.Name, URL: r.Link}})
	}
	return append(rows, []Button{{Text: "✅ Check", CallbackData: CheckCallbackData}})
}

// PromptTracker remembers the last prompt message per chat so a recheck
// can edit it in place. It lives in memory only.
type PromptTracker struct {
	mu   sync.Mutex
	last map[int64]int
}

// NewPromptTracker creates an empty tracker
func NewPromptTracker() *PromptTracker {
	return &PromptTracker{last: make(map[int64]int)}
}

// Remember records messageID as the current prompt in chatID
func (t *PromptTracker) Remember(chatID int64, messageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[chatID] = messageID
}

// Lookup returns the current prompt in chatID, if any
func (t *PromptTracker) Lookup(chatID int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.last[chatID]
	return id, ok
}

// Forget drops the prompt for chatID
func (t *PromptTracker) Forget(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, chatID)
}
