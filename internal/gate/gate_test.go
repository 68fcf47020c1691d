package gate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"subgate-bot/internal/channels"
	"subgate-bot/internal/membership"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func requirement(id int64, name string, expiresAt time.Time) channels.Requirement {
	return channels.Requirement{
		ID:         id,
		Name:       name,
		Link:       "https://t.me/" + name,
		ExternalID: -(1000 + id),
		IsActive:   true,
		ExpiresAt:  expiresAt,
	}
}

// fakeSource filters its rows the way the SQL store does
type fakeSource struct {
	reqs  []channels.Requirement
	err   error
	calls atomic.Int32
}

func (f *fakeSource) ActiveRequirements(_ context.Context, now time.Time) ([]channels.Requirement, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []channels.Requirement
	for _, r := range f.reqs {
		if r.InForce(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeProber struct {
	outcomes map[int64]membership.Outcome
	delays   map[int64]time.Duration
	panics   map[int64]bool
	// block waits for the probe context to end
	block map[int64]bool

	mu          sync.Mutex
	inflight    int
	maxInflight int
	calls       int
}

func (p *fakeProber) CheckMembership(ctx context.Context, channelID, _ int64) membership.Outcome {
	p.mu.Lock()
	p.calls++
	p.inflight++
	if p.inflight > p.maxInflight {
		p.maxInflight = p.inflight
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()

	if p.panics[channelID] {
		panic("probe exploded")
	}
	if p.block[channelID] {
		<-ctx.Done()
		return membership.Unknown
	}
	if d := p.delays[channelID]; d > 0 {
		time.Sleep(d)
	}
	return p.outcomes[channelID]
}

type stubResolver struct {
	missing []channels.Requirement
	err     error
	calls   atomic.Int32
}

func (s *stubResolver) Resolve(context.Context, int64, time.Time) ([]channels.Requirement, error) {
	s.calls.Add(1)
	return s.missing, s.err
}

type fakeAdmins struct {
	ids map[int64]bool
	err error
}

func (f fakeAdmins) IsAdmin(_ context.Context, userID int64) (bool, error) {
	return f.ids[userID], f.err
}

type renderedPrompt struct {
	ChatID    int64
	MessageID int
	Prompt    Prompt
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []renderedPrompt
	edited  []renderedPrompt
	deleted []int

	sendErr   error
	editErr   error
	deleteErr error
}

func (f *fakeMessenger) SendPrompt(_ context.Context, chatID int64, p Prompt) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	id := 100 + f.nextID
	f.sent = append(f.sent, renderedPrompt{ChatID: chatID, MessageID: id, Prompt: p})
	return id, nil
}

func (f *fakeMessenger) EditPrompt(_ context.Context, chatID int64, messageID int, p Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, renderedPrompt{ChatID: chatID, MessageID: messageID, Prompt: p})
	return nil
}

func (f *fakeMessenger) DeletePrompt(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return f.deleteErr
}

func buttonTexts(p Prompt) []string {
	var out []string
	for _, row := range p.Rows {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}
