package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAdmins struct {
	ids []int64
	err error
}

func (s staticAdmins) AdminIDs(context.Context) ([]int64, error) {
	return s.ids, s.err
}

func TestSetCommands(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, setCommands(api))

	require.Len(t, api.requests, 1)
	cfg, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	assert.Equal(t, botCommands, cfg.Commands)
}

func TestNotifyAdmins(t *testing.T) {
	api := &fakeAPI{}

	notifyAdmins(context.Background(), api, staticAdmins{ids: []int64{1, 2}}, startedText, discardLogger())

	require.Len(t, api.sent, 2)
	assert.Equal(t, int64(1), api.sent[0].(tgbotapi.MessageConfig).ChatID)
	assert.Equal(t, int64(2), api.sent[1].(tgbotapi.MessageConfig).ChatID)
	assert.Equal(t, []string{startedText, startedText}, api.sentTexts())
}

func TestNotifyAdminsListError(t *testing.T) {
	api := &fakeAPI{}

	notifyAdmins(context.Background(), api, staticAdmins{err: errors.New("db down")}, startedText, discardLogger())

	assert.Empty(t, api.sent)
}
