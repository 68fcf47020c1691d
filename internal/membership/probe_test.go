package membership

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGetter struct {
	mu      sync.Mutex
	calls   []tgbotapi.GetChatMemberConfig
	member  tgbotapi.ChatMember
	err     error
	release chan struct{}
}

func (f *fakeGetter) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cfg)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.member, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		err     error
		want    Outcome
		wantErr error
	}{
		{name: "member", status: "member", want: Member},
		{name: "administrator", status: "administrator", want: Member},
		{name: "creator", status: "creator", want: Member},
		{name: "owner", status: "owner", want: Member},
		{name: "left", status: "left", want: NotMember},
		{name: "kicked", status: "kicked", want: NotMember},
		{name: "restricted", status: "restricted", want: NotMember},
		{name: "forbidden", err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was kicked from the channel chat"}, want: NotMember, wantErr: apperrors.ErrMembershipUnobservable},
		{name: "bad request", err: &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, want: NotMember, wantErr: apperrors.ErrMembershipUnobservable},
		{name: "bad request by value", err: tgbotapi.Error{Code: 400, Message: "Bad Request: user not found"}, want: NotMember, wantErr: apperrors.ErrMembershipUnobservable},
		{name: "too many requests", err: &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, want: Unknown, wantErr: apperrors.ErrMembershipUnknown},
		{name: "transport", err: errors.New("dial tcp: i/o timeout"), want: Unknown, wantErr: apperrors.ErrMembershipUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tgbotapi.ChatMember{Status: tt.status}, tt.err)
			assert.Equal(t, tt.want, got)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckMembership(t *testing.T) {
	getter := &fakeGetter{member: tgbotapi.ChatMember{Status: "member"}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := NewProbe(getter, discardLogger(), m)

	got := p.CheckMembership(context.Background(), -1001, 42)
	assert.Equal(t, Member, got)

	require.Len(t, getter.calls, 1)
	assert.Equal(t, int64(-1001), getter.calls[0].ChatID)
	assert.Equal(t, int64(42), getter.calls[0].UserID)

	count, err := testutil.GatherAndCount(reg, "subgate_membership_probes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckMembershipClassifiedFailure(t *testing.T) {
	getter := &fakeGetter{err: &tgbotapi.Error{Code: 403, Message: "Forbidden"}}
	p := NewProbe(getter, discardLogger(), nil)

	assert.Equal(t, NotMember, p.CheckMembership(context.Background(), -1001, 42))
}

func TestCheckMembershipContextExpires(t *testing.T) {
	getter := &fakeGetter{
		member:  tgbotapi.ChatMember{Status: "member"},
		release: make(chan struct{}),
	}
	p := NewProbe(getter, discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, Unknown, p.CheckMembership(ctx, -1001, 42))

	// Let the abandoned request finish so it does not outlive the test
	close(getter.release)
	time.Sleep(10 * time.Millisecond)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "unknown", Outcome(0).String())
	assert.Equal(t, "member", Member.String())
	assert.Equal(t, "not_member", NotMember.String())
}
