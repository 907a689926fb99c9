package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.json")
	persist := false

	entry, err := Register(Options{
		ConfigPath: path,
		BinaryPath: "/opt/pans/mcp-server",
		DataDir:    "/var/lib/pans",
		Persist:    &persist,
	})
	require.NoError(t, err)
	assert.Equal(t, "/opt/pans/mcp-server", entry.Command)
	assert.Equal(t, "/var/lib/pans", entry.Env["PANS_DATA_DIR"])
	assert.Equal(t, "false", entry.Env["PANS_PERSIST"])

	got, ok, err := Registered(path, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestRegister_PreservesOtherSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	existing := `{
  "theme": "dark",
  "mcpServers": {
    "other": {"command": "/usr/bin/other"}
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0644))

	_, err := Register(Options{ConfigPath: path, ServerName: "scales", BinaryPath: "/bin/mcp-server"})
	require.NoError(t, err)

	var doc map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dark", doc["theme"])

	servers := doc["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "other")
	assert.Contains(t, servers, "scales")

	_, ok, err := Registered(path, DefaultServerName)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegister_Errors(t *testing.T) {
	_, err := Register(Options{BinaryPath: "/bin/x"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = Register(Options{ConfigPath: path, BinaryPath: "/bin/x"})
	assert.ErrorContains(t, err, "failed to parse config file")
}
