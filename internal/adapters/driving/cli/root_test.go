package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/logger"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"ingest", "retrieve", "document", "index", "watch", "mcp", "settings", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_BootstrapReceivesFlags(t *testing.T) {
	SetServices(nil)
	defer SetBootstrap(nil)
	defer SetServices(nil)
	defer resetFlags()
	defer logger.SetVerbose(false)

	var got Options
	calls := 0
	closed := false
	SetBootstrap(func(_ context.Context, o Options) (*Services, error) {
		calls++
		got = o
		return &Services{
			Corpus: newMockCorpus(),
			Close: func() error {
				closed = true
				return nil
			},
		}, nil
	})

	_, err := executeCommand("index", "stats", "--verbose", "--config-dir", "/tmp/cfg", "--data-dir", "/tmp/data")

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Options{Verbose: true, ConfigDir: "/tmp/cfg", DataDir: "/tmp/data"}, got)
	assert.True(t, logger.IsVerbose())

	require.NoError(t, teardown())
	assert.True(t, closed)
	assert.NoError(t, teardown(), "second teardown is a no-op")
}

func TestRootCmd_BootstrapModes(t *testing.T) {
	tests := []struct {
		name             string
		args             []string
		wantCalls        int
		wantSettingsOnly bool
	}{
		{name: "version skips bootstrap", args: []string{"version"}, wantCalls: 0},
		{name: "settings asks for settings only", args: []string{"settings", "validate"}, wantCalls: 1, wantSettingsOnly: true},
		{name: "corpus commands bootstrap everything", args: []string{"index", "verify"}, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetServices(nil)
			defer SetBootstrap(nil)
			defer SetServices(nil)
			defer resetFlags()

			calls := 0
			var got Options
			SetBootstrap(func(_ context.Context, o Options) (*Services, error) {
				calls++
				got = o
				return &Services{Corpus: newMockCorpus(), Settings: newMockSettings()}, nil
			})

			_, err := executeCommand(tt.args...)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantSettingsOnly, got.SettingsOnly)
		})
	}
}

func TestRootCmd_BootstrapError(t *testing.T) {
	SetServices(nil)
	defer SetBootstrap(nil)
	defer resetFlags()

	SetBootstrap(func(context.Context, Options) (*Services, error) {
		return nil, errBoom
	})

	_, err := executeCommand("document", "list")

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "starting passage")
}
