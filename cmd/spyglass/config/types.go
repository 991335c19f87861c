// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

type SpyglassConfig struct {
	// Server: observatory bind address and persistence
	Server ServerConfig `yaml:"server"`

	// Hooks: client-side behavior of the agent hooks
	Hooks HooksConfig `yaml:"hooks"`

	// Logging: destination and level for service logs
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"` // e.g. 127.0.0.1:8080
	MaxRecords int    `yaml:"max_records"` // hot window cap, 0 = default
	Archive    bool   `yaml:"archive"`     // keep truncated records in the archive
	DataDir    string `yaml:"data_dir"`    // empty uses the per-project data directory
}

type HooksConfig struct {
	// URL of the observatory the hooks post to. SPYGLASS_URL overrides
	// it; empty falls back to the loopback default.
	URL string `yaml:"url"`

	// StatusLine toggles the prompt-hook prediction line.
	StatusLine bool `yaml:"status_line"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // empty disables file logging
}

func DefaultConfig() SpyglassConfig {
	return SpyglassConfig{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8080",
			Archive:    true,
		},
		Hooks: HooksConfig{
			StatusLine: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.spyglass/logs",
		},
	}
}
