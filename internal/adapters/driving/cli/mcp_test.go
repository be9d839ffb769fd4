package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)

	host := mcpServeCmd.Flags().Lookup("host")
	require.NotNil(t, host)
	assert.Equal(t, "127.0.0.1", host.DefValue)
}

func TestMCPServeCmd_Errors(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		noServices bool
		wantErr    string
	}{
		{name: "negative port", args: []string{"mcp", "serve", "--port", "-1"}, wantErr: "invalid port -1"},
		{name: "port too large", args: []string{"mcp", "serve", "--port", "70000"}, wantErr: "invalid port 70000"},
		{name: "no services", args: []string{"mcp", "serve"}, noServices: true, wantErr: "corpus services not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cleanup := setupTestServices()
			defer cleanup()
			if tt.noServices {
				SetServices(nil)
			}

			_, err := executeCommand(tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
