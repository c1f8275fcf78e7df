package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebar/wavebar/internal/conf"
)

func TestConfigCommandReflectsFlags(t *testing.T) {
	ctx := &conf.Context{Settings: &conf.Settings{}}
	root := RootCommand(ctx)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--backend", "fifo", "--samplerate", "48000", "config"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "backend: fifo")
	assert.Contains(t, out.String(), "samplerate: 48000")
	assert.Nil(t, ctx.Logger, "config skips logger setup")
}

func TestRootRejectsInvalidSettings(t *testing.T) {
	ctx := &conf.Context{Settings: &conf.Settings{}}
	root := RootCommand(ctx)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--backend", "tape", "devices"})

	require.Error(t, root.Execute())
	assert.Nil(t, ctx.Logger)
}

func TestSubcommandsRegistered(t *testing.T) {
	root := RootCommand(&conf.Context{Settings: &conf.Settings{}})

	for _, name := range []string{"overlay", "devices", "config"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}
