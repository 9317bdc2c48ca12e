package mcpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/ethiochat/internal/config"
)

func TestDialRejectsUnknownType(t *testing.T) {
	_, err := Dial(context.Background(), config.MCPServerConfig{Name: "odd", Type: "carrier-pigeon"})
	require.ErrorContains(t, err, `unsupported mcp server type "carrier-pigeon"`)
	require.ErrorContains(t, err, "create mcp client odd")
}

func TestEnvPairsUpperCaseKeys(t *testing.T) {
	require.ElementsMatch(t, []string{"API_KEY=abc", "REGION=et"}, envPairs(map[string]string{"api_key": "abc", "region": "et"}))
	require.Empty(t, envPairs(nil))
}
