package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/limiter"
	"subgate-bot/internal/metrics"
)

// Welcome is what a user reaches once the gate lets them through
type Welcome func(ctx context.Context, ev Event) error

// Recheck handles the check button on a subscribe prompt
type Recheck struct {
	resolver  UnsubscribedResolver
	messenger Messenger
	tracker   *PromptTracker
	inflight  *limiter.UserLimiter
	welcome   Welcome
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewRecheck creates a recheck handler
func NewRecheck(
	resolver UnsubscribedResolver,
	messenger Messenger,
	tracker *PromptTracker,
	inflight *limiter.UserLimiter,
	welcome Welcome,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Recheck {
	return &Recheck{
		resolver:  resolver,
		messenger: messenger,
		tracker:   tracker,
		inflight:  inflight,
		welcome:   welcome,
		now:       time.Now,
		logger:    logger,
		metrics:   m,
	}
}

// Handle re-runs the resolver for the user who pressed the button. While
// channels are still missing the prompt is edited in place; once none are,
// the prompt is deleted and the user is welcomed.
func (r *Recheck) Handle(ctx context.Context, ev Event) error {
	release, ok := r.inflight.TryAcquire(ev.UserID)
	if !ok {
		r.logger.Debug("recheck already running",
			"user_id", ev.UserID,
			"active_rechecks", r.inflight.ActiveCount(),
		)
		r.metrics.Recheck("duplicate")
		return nil
	}
	defer release()

	missing, err := r.resolver.Resolve(ctx, ev.UserID, r.now())
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		r.metrics.Recheck("still_missing")
		return r.showMissing(ctx, ev, StillMissingPrompt(missing))
	}

	r.metrics.Recheck("cleared")
	if msgID, ok := r.promptMessage(ev); ok {
		if err := r.messenger.DeletePrompt(ctx, ev.ChatID, msgID); err != nil {
			r.logger.Debug("delete prompt failed", "chat_id", ev.ChatID, "message_id", msgID, "error", err)
		}
	}
	r.tracker.Forget(ev.ChatID)
	return r.welcome(ctx, ev)
}

func (r *Recheck) showMissing(ctx context.Context, ev Event, p Prompt) error {
	msgID, ok := r.promptMessage(ev)
	if !ok {
		sent, err := r.messenger.SendPrompt(ctx, ev.ChatID, p)
		if err != nil {
			return fmt.Errorf("send recheck prompt: %w", err)
		}
		r.tracker.Remember(ev.ChatID, sent)
		return nil
	}

	err := r.messenger.EditPrompt(ctx, ev.ChatID, msgID, p)
	if err != nil && !apperrors.IsUINoOp(err) {
		return fmt.Errorf("edit prompt %d: %w", msgID, err)
	}
	r.tracker.Remember(ev.ChatID, msgID)
	return nil
}

// promptMessage picks the message to mutate: the one carrying the pressed
// button, else the last prompt sent to the chat
func (r *Recheck) promptMessage(ev Event) (int, bool) {
	if ev.MessageID != 0 {
		return ev.MessageID, true
	}
	return r.tracker.Lookup(ev.ChatID)
}
