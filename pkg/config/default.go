// Package config holds the global database configuration.
package config

import (
	"gopkg.in/ini.v1"
)

// Name of the database.
const DBName = "stegodb"

// Prompt printed by the REPL.
const Prompt = DBName + "> "

// DefaultMaxPagesInBuffer is the default number of frames in the pager's buffer pool.
const DefaultMaxPagesInBuffer = 32

// Config is the runtime configuration, populated from defaults and optionally
// overridden by an ini file.
type Config struct {
	DataDir          string
	MaxPagesInBuffer int
	LogLevel         string
	// Leaf/internal fanout overrides for the B+tree; 0 derives them from the
	// page capacity.
	LeafMaxSize     int64
	InternalMaxSize int64
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		DataDir:          "data",
		MaxPagesInBuffer: DefaultMaxPagesInBuffer,
		LogLevel:         "info",
	}
}

// Load reads an ini file and overlays it on the defaults. Keys live in the
// top-level section: data_dir, max_pages_in_buffer, log_level, leaf_max_size,
// internal_max_size.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	section := file.Section("")
	if key := section.Key("data_dir"); key.String() != "" {
		cfg.DataDir = key.String()
	}
	cfg.MaxPagesInBuffer = section.Key("max_pages_in_buffer").MustInt(cfg.MaxPagesInBuffer)
	if key := section.Key("log_level"); key.String() != "" {
		cfg.LogLevel = key.String()
	}
	cfg.LeafMaxSize = section.Key("leaf_max_size").MustInt64(cfg.LeafMaxSize)
	cfg.InternalMaxSize = section.Key("internal_max_size").MustInt64(cfg.InternalMaxSize)
	return cfg, nil
}

// GetPrompt returns the prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
