package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService(t *testing.T) {
	env := newTestEnv(t)
	admins := NewAdminService(env.db, env.cfg)

	assert.True(t, admins.IsAdmin(1), "所有者总是管理员")
	assert.False(t, admins.IsAdmin(7))

	require.NoError(t, admins.Add(7, 1, "bob"))
	assert.True(t, admins.IsAdmin(7))

	list, err := admins.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, admins.Remove(7, 1))
	assert.False(t, admins.IsAdmin(7))
	assert.ErrorIs(t, admins.Remove(7, 1), ErrAdminNotFound)

	assert.ErrorIs(t, admins.Remove(1, 7), ErrOwnerProtected)
	assert.ErrorIs(t, admins.Add(0, 1, ""), ErrInvalidArgument)
}

func TestChannelService(t *testing.T) {
	env := newTestEnv(t)
	channels := NewChannelService(env.db, env.cfg)

	ch, err := channels.Add("4000", "prem4", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "-1004000", ch.ChannelID)
	assert.Equal(t, "@prem4", ch.ChannelUsername)
	assert.True(t, ch.IsActive)

	_, err = channels.Add("not-an-id", "", "", 1)
	assert.ErrorIs(t, err, ErrInvalidChannelID)

	active, err := channels.Active()
	require.NoError(t, err)
	assert.Len(t, active, 4)

	on, err := channels.Toggle("-1004000")
	require.NoError(t, err)
	assert.False(t, on)

	active, err = channels.Active()
	require.NoError(t, err)
	assert.Len(t, active, 3)

	_, err = channels.Toggle(mainChannelID)
	assert.ErrorIs(t, err, ErrMainChannelLocked)

	_, err = channels.Toggle("-1009999")
	assert.ErrorIs(t, err, ErrChannelNotFound)

	assert.Equal(t, mainChannelID, channels.Main().ChannelID)
}

func TestButtonService(t *testing.T) {
	env := newTestEnv(t)
	buttons := NewButtonService(env.db)

	_, err := buttons.Create("FAQ", "/faq", "常见问题", 1)
	require.NoError(t, err)

	b, ok := buttons.Lookup("faq")
	require.True(t, ok)
	assert.Equal(t, "常见问题", b.ButtonResponse)

	_, err = buttons.Create("FAQ", "faq", "x", 1)
	assert.ErrorIs(t, err, ErrButtonExists)
	_, err = buttons.Create("Start", "start", "x", 1)
	assert.ErrorIs(t, err, ErrReservedCommand)
	_, err = buttons.Create("Bad", "has space", "x", 1)
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = buttons.Create("", "empty", "x", 1)
	assert.ErrorIs(t, err, ErrInvalidButtonFields)

	require.NoError(t, buttons.Edit("faq", "", "新的回复"))
	b, err = buttons.Get("faq")
	require.NoError(t, err)
	assert.Equal(t, "新的回复", b.ButtonResponse)
	assert.Equal(t, "FAQ", b.ButtonText)

	active, err := buttons.Toggle("faq")
	require.NoError(t, err)
	assert.False(t, active)
	_, ok = buttons.Lookup("faq")
	assert.False(t, ok)

	require.NoError(t, buttons.Delete("faq"))
	assert.ErrorIs(t, buttons.Delete("faq"), ErrButtonNotFound)
	assert.ErrorIs(t, buttons.Edit("faq", "x", ""), ErrButtonNotFound)
}
