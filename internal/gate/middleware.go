package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"subgate-bot/internal/channels"
	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/metrics"
)

// State is a step of the gate state machine for one event
type State int

const (
	Received State = iota
	AdminBypass
	CommandBypass
	Resolving
	Allowed
	Blocked
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case AdminBypass:
		return "admin_bypass"
	case CommandBypass:
		return "command_bypass"
	case Resolving:
		return "resolving"
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision is the terminal state for an event. Missing is set when Blocked.
type Decision struct {
	State   State
	Missing []channels.Requirement
}

// Forward reports whether the event may reach downstream handlers
func (d Decision) Forward() bool {
	return d.State != Blocked
}

// AdminSource answers whether a user is an administrator. It is asked on
// every event.
type AdminSource interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// Handler processes an event that passed the gate
type Handler func(ctx context.Context, ev Event) error

// Middleware is the gate in front of the bot's handlers
type Middleware struct {
	admins    AdminSource
	resolver  UnsubscribedResolver
	messenger Messenger
	tracker   *PromptTracker
	bypass    []string
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewMiddleware creates the gate. bypassCommands are message prefixes that
// skip the membership check, typically /start and /help.
func NewMiddleware(
	admins AdminSource,
	resolver UnsubscribedResolver,
	messenger Messenger,
	tracker *PromptTracker,
	bypassCommands []string,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Middleware {
	return &Middleware{
		admins:    admins,
		resolver:  resolver,
		messenger: messenger,
		tracker:   tracker,
		bypass:    bypassCommands,
		now:       time.Now,
		logger:    logger,
		metrics:   m,
	}
}

// Evaluate runs the state machine for ev without side effects on the chat
func (m *Middleware) Evaluate(ctx context.Context, ev Event) (Decision, error) {
	isAdmin, err := m.admins.IsAdmin(ctx, ev.UserID)
	if err != nil {
		return Decision{State: Received}, fmt.Errorf("check admin %d: %w", ev.UserID, err)
	}
	if isAdmin {
		return Decision{State: AdminBypass}, nil
	}

	if ev.Kind == EventMessage && m.isBypassCommand(ev.Text) {
		return Decision{State: CommandBypass}, nil
	}
	// Only messages are gated; callbacks and the rest pass unchanged
	if ev.Kind != EventMessage {
		return Decision{State: Allowed}, nil
	}

	missing, err := m.resolver.Resolve(ctx, ev.UserID, m.now())
	if err != nil {
		return Decision{State: Resolving}, err
	}
	if len(missing) == 0 {
		return Decision{State: Allowed}, nil
	}
	return Decision{State: Blocked, Missing: missing}, nil
}

func (m *Middleware) isBypassCommand(text string) bool {
	for _, cmd := range m.bypass {
		if strings.HasPrefix(text, cmd) {
			return true
		}
	}
	return false
}

// Wrap returns a handler that forwards to next unless the sender is
// blocked, in which case it renders the subscribe prompt instead.
func (m *Middleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, ev Event) error {
		decision, err := m.Evaluate(ctx, ev)
		if err != nil {
			return err
		}
		m.metrics.GateDecision(decision.State.String())

		if decision.Forward() {
			m.logger.Debug("event forwarded",
				"user_id", ev.UserID,
				"kind", ev.Kind.String(),
				"state", decision.State.String(),
			)
			return next(ctx, ev)
		}

		m.logger.Info("event blocked",
			"user_id", ev.UserID,
			"chat_id", ev.ChatID,
			"missing", len(decision.Missing),
		)
		msgID, err := m.messenger.SendPrompt(ctx, ev.ChatID, SubscribePrompt(decision.Missing))
		if err != nil {
			if apperrors.IsUINoOp(err) {
				return nil
			}
			return fmt.Errorf("send subscribe prompt: %w", err)
		}
		m.tracker.Remember(ev.ChatID, msgID)
		return nil
	}
}
