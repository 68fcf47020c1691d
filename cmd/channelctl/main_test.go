package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgate-bot/internal/channels"
	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/users"
)

func useTempDatabase(t *testing.T) {
	t.Helper()
	t.Setenv("SUBGATE_DATABASE_DRIVER", "sqlite")
	t.Setenv("SUBGATE_DATABASE_PATH", filepath.Join(t.TempDir(), "channelctl.db"))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	defer a.close()

	var out bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestChannelLifecycle(t *testing.T) {
	useTempDatabase(t)

	out, err := run(t, "channel", "create", "--name", "News", "--link", "https://t.me/news", "--channel-id", "100", "--for", "1h", "--json")
	require.NoError(t, err)
	var created channels.Requirement
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, int64(-100), created.ExternalID)
	assert.True(t, created.IsActive)

	out, err = run(t, "channel", "active", "--json")
	require.NoError(t, err)
	var active []channels.Requirement
	require.NoError(t, json.Unmarshal([]byte(out), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "News", active[0].Name)

	id := strconv.FormatInt(created.ID, 10)
	_, err = run(t, "channel", "update", id, "--active=false")
	require.NoError(t, err)

	out, err = run(t, "channel", "active", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = run(t, "channel", "get", "--chat-id", "--", "-100")
	require.NoError(t, err)
	assert.Contains(t, out, "Active:      false")

	out, err = run(t, "channel", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "https://t.me/news")
	assert.Contains(t, out, "1 channels")

	out, err = run(t, "channel", "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "Deleted "+id+"\n", out)

	_, err = run(t, "channel", "get", id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChannelCreateWithoutExpiryIsNotInForce(t *testing.T) {
	useTempDatabase(t)

	_, err := run(t, "channel", "create", "--name", "A", "--link", "https://t.me/a", "--channel-id", "1")
	require.NoError(t, err)

	out, err := run(t, "channel", "active", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestChannelCreateRejectsBadFlags(t *testing.T) {
	useTempDatabase(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing link", args: []string{"channel", "create", "--name", "A", "--channel-id", "1"}},
		{name: "bad expiry", args: []string{"channel", "create", "--name", "A", "--link", "l", "--channel-id", "1", "--expires-at", "tomorrow"}},
		{name: "both expiries", args: []string{"channel", "create", "--name", "A", "--link", "l", "--channel-id", "1", "--expires-at", "2030-01-01T00:00:00Z", "--for", "1h"}},
		{name: "bad id", args: []string{"channel", "get", "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestAdminCommands(t *testing.T) {
	useTempDatabase(t)

	out, err := run(t, "admin", "grant", "7", "9")
	require.NoError(t, err)
	assert.Equal(t, "Granted admin to 7\nGranted admin to 9\n", out)

	_, err = run(t, "admin", "revoke", "9")
	require.NoError(t, err)

	out, err = run(t, "admin", "list", "--json")
	require.NoError(t, err)
	var admins []users.User
	require.NoError(t, json.Unmarshal([]byte(out), &admins))
	require.Len(t, admins, 1)
	assert.Equal(t, int64(7), admins[0].TelegramID)

	_, err = run(t, "admin", "revoke", "12345")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
