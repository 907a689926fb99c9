// Package setup registers the MCP server in a desktop client's configuration.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultServerName is the key the server is registered under.
const DefaultServerName = "pans-scales"

// BinaryName is the stdio MCP server binary.
const BinaryName = "mcp-server"

// MCPServerConfig represents a single MCP server entry.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the registration.
type Options struct {
	ConfigPath string // Client config file to update
	ServerName string // Entry name, defaults to DefaultServerName
	BinaryPath string // Path to the server binary, searched for when empty
	DataDir    string // Passed as PANS_DATA_DIR
	Persist    *bool  // Passed as PANS_PERSIST when set
}

// clientConfig keeps every top-level key of the client file so that
// unrelated settings survive a rewrite.
type clientConfig struct {
	other   map[string]json.RawMessage
	servers map[string]MCPServerConfig
}

func loadClientConfig(path string) (*clientConfig, error) {
	cfg := &clientConfig{
		other:   make(map[string]json.RawMessage),
		servers: make(map[string]MCPServerConfig),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.servers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	return cfg, nil
}

func (c *clientConfig) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	servers, err := json.Marshal(c.servers)
	if err != nil {
		return fmt.Errorf("failed to marshal servers: %w", err)
	}
	out := make(map[string]json.RawMessage, len(c.other)+1)
	for k, v := range c.other {
		out[k] = v
	}
	out["mcpServers"] = servers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry and returns what was written.
func Register(opts Options) (MCPServerConfig, error) {
	if opts.ConfigPath == "" {
		return MCPServerConfig{}, errors.New("client config path is required")
	}
	if opts.ServerName == "" {
		opts.ServerName = DefaultServerName
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		var err error
		binaryPath, err = findBinary()
		if err != nil {
			return MCPServerConfig{}, fmt.Errorf("could not find server binary: %w", err)
		}
	}

	cfg, err := loadClientConfig(opts.ConfigPath)
	if err != nil {
		return MCPServerConfig{}, err
	}

	entry := MCPServerConfig{Command: binaryPath, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env["PANS_DATA_DIR"] = opts.DataDir
	}
	if opts.Persist != nil {
		entry.Env["PANS_PERSIST"] = fmt.Sprintf("%t", *opts.Persist)
	}
	cfg.servers[opts.ServerName] = entry

	if err := cfg.save(opts.ConfigPath); err != nil {
		return MCPServerConfig{}, err
	}
	return entry, nil
}

// Registered reports the entry stored under name, if any.
func Registered(configPath, name string) (MCPServerConfig, bool, error) {
	if name == "" {
		name = DefaultServerName
	}
	cfg, err := loadClientConfig(configPath)
	if err != nil {
		return MCPServerConfig{}, false, err
	}
	entry, ok := cfg.servers[name]
	return entry, ok, nil
}

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}
	return "", fmt.Errorf("binary '%s' not found in common locations", BinaryName)
}
