// Package gate decides whether an inbound chat event may reach the bot's
// handlers, based on the user's membership in the required channels.
package gate

// EventKind tags the variant carried by an Event
type EventKind int

const (
	// EventOther covers updates the gate does not inspect
	EventOther EventKind = iota
	EventMessage
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventCallback:
		return "callback"
	default:
		return "other"
	}
}

// Event is a platform-neutral view of one inbound update.
// Text is set for messages, CallbackID and CallbackData for button presses.
// MessageID is the incoming message, or for callbacks the message that
// carried the pressed button.
type Event struct {
	Kind         EventKind
	UserID       int64
	ChatID       int64
	MessageID    int
	Text         string
	CallbackID   string
	CallbackData string
}

// IsRecheck reports whether the event is a press of the check button
func (e Event) IsRecheck() bool {
	return e.Kind == EventCallback && e.CallbackData == CheckCallbackData
}
