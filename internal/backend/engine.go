package backend

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// engineConfigFile is the well-known name of the engine configuration inside
// the engines directory.
const engineConfigFile = "config.json"

// EngineConfig is the subset of the persisted engine configuration this
// backend consumes. The file carries many more executor parameters; those are
// read by the executor itself from the same directory.
type EngineConfig struct {
	Version          string `json:"version"`
	PretrainedConfig struct {
		Mapping struct {
			WorldSize int `json:"world_size"`
		} `json:"mapping"`
	} `json:"pretrained_config"`
}

// Sharding returns the sharding metadata declared by the engine artifacts.
func (c EngineConfig) Sharding() ShardingMetadata {
	return ShardingMetadata{WorldSize: c.PretrainedConfig.Mapping.WorldSize}
}

// LoadEngineConfig reads and parses config.json from the engines directory.
// Any failure here is fatal to backend construction: a missing or malformed
// engine configuration leaves nothing to serve.
func LoadEngineConfig(enginesDir string) (EngineConfig, error) {
	var cfg EngineConfig
	path := filepath.Join(enginesDir, engineConfigFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse engine config %s: %w", path, err)
	}
	if cfg.PretrainedConfig.Mapping.WorldSize < 1 {
		return cfg, fmt.Errorf("engine config %s: world_size must be >= 1, got %d",
			path, cfg.PretrainedConfig.Mapping.WorldSize)
	}
	return cfg, nil
}
