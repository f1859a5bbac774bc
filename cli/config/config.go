package config

import (
	"fmt"
	"time"
)

// Config represents an ng.yaml configuration file.
// All values are optional and act as defaults for ng command flags.
// CLI flags always override config values.
type Config struct {
	// Address of the server ("local:PATH" or "HOST:PORT").
	Address string `yaml:"address"`
	// HeartbeatInterval between liveness chunks while a session runs.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	// StdinChunkSize bounds input bytes sent per server input request.
	StdinChunkSize int `yaml:"stdin_chunk_size"`

	Server ServerConfig `yaml:"server"`
	Bench  BenchConfig  `yaml:"bench"`
}

// ServerConfig describes a server process the CLI may spawn itself
// instead of connecting to an already-running one.
type ServerConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	StartupTimeout Duration `yaml:"startup_timeout"`
}

// BenchConfig holds defaults for the bench command.
type BenchConfig struct {
	Iterations int      `yaml:"iterations"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Input      string   `yaml:"input"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "500ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
