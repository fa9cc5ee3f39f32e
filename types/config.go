package types

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	DefaultTreeDepth          = 32
	DefaultWitnessCacheWindow = 101 // max reorg depth 100, plus one
)

type Config struct {
	DataDir            string `json:"datadir"`
	LogLevel           string `json:"loglevel"`
	DebugModules       string `json:"debug"`
	TreeDepth          int    `json:"tree_depth"`
	WitnessCacheWindow int    `json:"witness_cache_window"`
	VerifyWitnessRoots bool   `json:"verify_witness_roots"`
	TelemetryEndpoint  string `json:"telemetry_endpoint"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:            "./shielded-data",
		LogLevel:           "info",
		TreeDepth:          DefaultTreeDepth,
		WitnessCacheWindow: DefaultWitnessCacheWindow,
		VerifyWitnessRoots: true,
	}
}

// LoadConfig reads a JSON config file; fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TreeDepth < 1 || c.TreeDepth > 32 {
		return fmt.Errorf("tree_depth %d out of range [1,32]", c.TreeDepth)
	}
	if c.WitnessCacheWindow < 1 {
		return fmt.Errorf("witness_cache_window must be at least 1, got %d", c.WitnessCacheWindow)
	}
	return nil
}

// String method returns the Config as a formatted JSON string
func (c *Config) String() string {
	jsonData, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}
