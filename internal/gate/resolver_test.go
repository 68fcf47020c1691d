package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgate-bot/internal/channels"
	"subgate-bot/internal/membership"
)

func TestResolver_SkipsLapsedRequirements(t *testing.T) {
	c1 := requirement(1, "c1", testNow.Add(time.Hour))
	c2 := requirement(2, "c2", testNow.Add(-time.Hour))
	source := &fakeSource{reqs: []channels.Requirement{c1, c2}}
	prober := &fakeProber{outcomes: map[int64]membership.Outcome{
		c1.ExternalID: membership.NotMember,
		c2.ExternalID: membership.NotMember,
	}}

	r := NewResolver(source, prober, time.Second, 4, discardLogger())
	missing, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)

	assert.Equal(t, []channels.Requirement{c1}, missing)
	assert.Equal(t, 1, prober.calls)
}

func TestResolver_UnknownOutcomeIsNotEnforced(t *testing.T) {
	c1 := requirement(1, "c1", testNow.Add(time.Hour))
	c2 := requirement(2, "c2", testNow.Add(time.Hour))
	source := &fakeSource{reqs: []channels.Requirement{c1, c2}}
	prober := &fakeProber{
		outcomes: map[int64]membership.Outcome{c1.ExternalID: membership.Member},
		block:    map[int64]bool{c2.ExternalID: true},
	}

	r := NewResolver(source, prober, 20*time.Millisecond, 4, discardLogger())
	missing, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestResolver_PreservesOrderUnderConcurrency(t *testing.T) {
	var reqs []channels.Requirement
	prober := &fakeProber{
		outcomes: map[int64]membership.Outcome{},
		delays:   map[int64]time.Duration{},
	}
	for i := int64(1); i <= 6; i++ {
		r := requirement(i, "c", testNow.Add(time.Hour))
		reqs = append(reqs, r)
		prober.outcomes[r.ExternalID] = membership.NotMember
		// Earlier channels answer last
		prober.delays[r.ExternalID] = time.Duration(7-i) * 5 * time.Millisecond
	}
	// One member in the middle
	prober.outcomes[reqs[2].ExternalID] = membership.Member

	r := NewResolver(&fakeSource{reqs: reqs}, prober, time.Second, 6, discardLogger())

	first, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)

	want := []channels.Requirement{reqs[0], reqs[1], reqs[3], reqs[4], reqs[5]}
	assert.Equal(t, want, first)
	assert.Equal(t, first, second)
}

func TestResolver_IsolatesProbeFailures(t *testing.T) {
	c1 := requirement(1, "c1", testNow.Add(time.Hour))
	c2 := requirement(2, "c2", testNow.Add(time.Hour))
	c3 := requirement(3, "c3", testNow.Add(time.Hour))
	c4 := requirement(4, "c4", testNow.Add(time.Hour))
	prober := &fakeProber{
		outcomes: map[int64]membership.Outcome{
			c1.ExternalID: membership.NotMember,
			c3.ExternalID: membership.Unknown,
			c4.ExternalID: membership.NotMember,
		},
		panics: map[int64]bool{c2.ExternalID: true},
	}

	r := NewResolver(&fakeSource{reqs: []channels.Requirement{c1, c2, c3, c4}}, prober, time.Second, 2, discardLogger())
	missing, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Equal(t, []channels.Requirement{c1, c4}, missing)
}

func TestResolver_BoundsConcurrency(t *testing.T) {
	var reqs []channels.Requirement
	prober := &fakeProber{
		outcomes: map[int64]membership.Outcome{},
		delays:   map[int64]time.Duration{},
	}
	for i := int64(1); i <= 8; i++ {
		r := requirement(i, "c", testNow.Add(time.Hour))
		reqs = append(reqs, r)
		prober.delays[r.ExternalID] = 10 * time.Millisecond
	}

	r := NewResolver(&fakeSource{reqs: reqs}, prober, time.Second, 2, discardLogger())
	_, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)

	assert.Equal(t, 8, prober.calls)
	assert.LessOrEqual(t, prober.maxInflight, 2)
}

func TestResolver_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("database is locked")
	prober := &fakeProber{}

	r := NewResolver(&fakeSource{err: boom}, prober, time.Second, 2, discardLogger())
	_, err := r.Resolve(context.Background(), 42, testNow)

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, prober.calls)
}

func TestResolver_NoRequirements(t *testing.T) {
	r := NewResolver(&fakeSource{}, &fakeProber{}, time.Second, 2, discardLogger())
	missing, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

// chatMemberScript answers GetChatMember per chat id and can be changed
// between resolves
type chatMemberScript struct {
	replies map[int64]func() (tgbotapi.ChatMember, error)
}

func (s *chatMemberScript) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return s.replies[cfg.ChatID]()
}

func TestResolver_ClassifiedFailureBlocksDespiteEarlierMembership(t *testing.T) {
	c1 := requirement(1, "c1", testNow.Add(time.Hour))
	c2 := requirement(2, "c2", testNow.Add(time.Hour))
	script := &chatMemberScript{replies: map[int64]func() (tgbotapi.ChatMember, error){
		c1.ExternalID: func() (tgbotapi.ChatMember, error) { return tgbotapi.ChatMember{Status: "member"}, nil },
		c2.ExternalID: func() (tgbotapi.ChatMember, error) { return tgbotapi.ChatMember{Status: "administrator"}, nil },
	}}
	probe := membership.NewProbe(script, discardLogger(), nil)
	r := NewResolver(&fakeSource{reqs: []channels.Requirement{c1, c2}}, probe, time.Second, 2, discardLogger())

	missing, err := r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// The bot loses access to c1
	script.replies[c1.ExternalID] = func() (tgbotapi.ChatMember, error) {
		return tgbotapi.ChatMember{}, &tgbotapi.Error{Code: 403, Message: "Forbidden: bot is not a member of the channel chat"}
	}
	missing, err = r.Resolve(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Equal(t, []channels.Requirement{c1}, missing)
}
