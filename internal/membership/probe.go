// Package membership asks Telegram whether a user belongs to a channel and
// folds every answer, including failures, into a tri-state outcome.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/metrics"
)

// Outcome is the result of one membership probe
type Outcome int

const (
	// Unknown means the probe failed for a reason that proves nothing
	Unknown Outcome = iota
	Member
	NotMember
)

func (o Outcome) String() string {
	switch o {
	case Member:
		return "member"
	case NotMember:
		return "not_member"
	default:
		return "unknown"
	}
}

// ChatMemberGetter is the slice of the Bot API the probe needs.
// *tgbotapi.BotAPI satisfies it.
type ChatMemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Probe checks channel membership against the Bot API
type Probe struct {
	api     ChatMemberGetter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProbe creates a probe. m may be nil.
func NewProbe(api ChatMemberGetter, logger *slog.Logger, m *metrics.Metrics) *Probe {
	return &Probe{api: api, logger: logger, metrics: m}
}

type memberResult struct {
	member tgbotapi.ChatMember
	err    error
}

// CheckMembership reports whether userID is a member of the channel with
// the given (stored, negative) chat id. It never returns an error: failures
// are folded into NotMember or Unknown by Classify. The Bot API client has no
// context support, so a cancelled ctx abandons the in-flight request; the
// getter's own HTTP deadline is what ends it.
func (p *Probe) CheckMembership(ctx context.Context, channelID, userID int64) Outcome {
	start := time.Now()

	resCh := make(chan memberResult, 1)
	go func() {
		member, err := p.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: channelID,
				UserID: userID,
			},
		})
		resCh <- memberResult{member: member, err: err}
	}()

	var (
		outcome Outcome
		err     error
	)
	select {
	case res := <-resCh:
		outcome, err = Classify(res.member, res.err)
	case <-ctx.Done():
		outcome = Unknown
		err = fmt.Errorf("%w: %v", apperrors.ErrMembershipUnknown, ctx.Err())
	}

	p.metrics.ProbeObserved(outcome.String(), time.Since(start))

	if err != nil {
		level := slog.LevelDebug
		if outcome == Unknown {
			level = slog.LevelWarn
		}
		p.logger.Log(ctx, level, "membership probe failed",
			"channel_id", channelID,
			"user_id", userID,
			"outcome", outcome.String(),
			"error", err,
		)
	}
	return outcome
}

// memberStatuses are the chat member statuses that count as joined
var memberStatuses = map[string]bool{
	"member":        true,
	"administrator": true,
	"creator":       true,
	"owner":         true,
}

// Classify maps a GetChatMember result to an Outcome. The returned error is
// nil on success and otherwise wraps ErrMembershipUnobservable (the bot cannot
// see the chat or the user, answered as NotMember) or ErrMembershipUnknown.
func Classify(member tgbotapi.ChatMember, err error) (Outcome, error) {
	if err == nil {
		if memberStatuses[member.Status] {
			return Member, nil
		}
		return NotMember, nil
	}

	if code, ok := apiErrorCode(err); ok {
		switch code {
		case http.StatusForbidden, http.StatusBadRequest:
			return NotMember, fmt.Errorf("%w: %v", apperrors.ErrMembershipUnobservable, err)
		}
	}
	return Unknown, fmt.Errorf("%w: %v", apperrors.ErrMembershipUnknown, err)
}

func apiErrorCode(err error) (int, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val.Code, true
	}
	return 0, false
}
