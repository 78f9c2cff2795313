// Package config loads and saves the plugin's single JSON
// configuration file.
//
// Grounded on config.go's LoadLoginServer idiom (defaults, overlay
// from a file that falls back to defaults when missing, parse error
// wrapped with the path) adapted from YAML to JSON — the external
// format spec.md §6 mandates — and extended with a raw-field
// passthrough so unknown keys survive a load/save round trip, which
// the teacher's closed deployment file never needed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the plugin's recognized option set, matching spec.md §6's
// command-surface targets one-to-one.
type Config struct {
	Enabled bool `json:"enabled"`
	Block   bool `json:"block"`
	Jaunt   bool `json:"jaunt"`
	Debug   bool `json:"debug"`
	DashMs  int  `json:"dash"`
	DelayMs int  `json:"delay"`

	// PingDisplay/PingIntervalSec back the `<ns> ping [<n>]` command.
	PingDisplay     bool `json:"pingDisplay"`
	PingIntervalSec int  `json:"pingIntervalSec"`

	// WiggleRoomBonus is the Open Question 1 resolution: an additional
	// wiggle-room offset (ms) calculateTime applies, default 0.
	WiggleRoomBonus int `json:"wiggleRoomBonus"`

	// raw retains every field exactly as read, including ones this
	// struct doesn't recognize, so Save never drops them.
	raw map[string]json.RawMessage
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Enabled: true,
		DashMs:  25,
	}
}

// Load reads path as JSON, overlaying it onto Default(). A missing
// file is not an error — Default() is returned. Unknown fields are
// retained so Save reproduces them.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg.raw); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg back to path as JSON, preserving any fields present
// in the original file that this struct doesn't itself recognize.
func (c Config) Save(path string) error {
	merged := make(map[string]json.RawMessage, len(c.raw)+8)
	for k, v := range c.raw {
		merged[k] = v
	}

	known, err := json.Marshal(knownFields(c))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	for k, v := range knownMap {
		merged[k] = v
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// knownFieldsT mirrors Config's recognized fields for marshaling,
// keeping the unexported raw map out of the written JSON.
type knownFieldsT struct {
	Enabled         bool `json:"enabled"`
	Block           bool `json:"block"`
	Jaunt           bool `json:"jaunt"`
	Debug           bool `json:"debug"`
	DashMs          int  `json:"dash"`
	DelayMs         int  `json:"delay"`
	PingDisplay     bool `json:"pingDisplay"`
	PingIntervalSec int  `json:"pingIntervalSec"`
	WiggleRoomBonus int  `json:"wiggleRoomBonus"`
}

func knownFields(c Config) knownFieldsT {
	return knownFieldsT{
		Enabled:         c.Enabled,
		Block:           c.Block,
		Jaunt:           c.Jaunt,
		Debug:           c.Debug,
		DashMs:          c.DashMs,
		DelayMs:         c.DelayMs,
		PingDisplay:     c.PingDisplay,
		PingIntervalSec: c.PingIntervalSec,
		WiggleRoomBonus: c.WiggleRoomBonus,
	}
}
