package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from core.AdapterConfig.Options using mapstructure.
type Params struct {
	// Path of the database file. Empty keeps everything in memory.
	Path string `mapstructure:"path"`

	// Threads caps the worker threads DuckDB may use (0 keeps the default).
	Threads int `mapstructure:"threads"`

	// MemoryLimit is passed to SET memory_limit, e.g. "1GB".
	MemoryLimit string `mapstructure:"memory_limit"`
}

// ParseParams decodes the adapter options into Params.
func ParseParams(options map[string]string) (*Params, error) {
	p := &Params{}
	if len(options) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(options); err != nil {
		return nil, fmt.Errorf("invalid duckdb options: %w", err)
	}
	if p.Threads < 0 {
		return nil, fmt.Errorf("invalid duckdb options: threads must not be negative")
	}
	return p, nil
}

// settings returns the SET statements implied by the params, in a fixed order.
func (p *Params) settings() []string {
	var out []string
	if p.Threads > 0 {
		out = append(out, fmt.Sprintf("SET threads = %d", p.Threads))
	}
	if p.MemoryLimit != "" {
		out = append(out, fmt.Sprintf("SET memory_limit = '%s'", p.MemoryLimit))
	}
	return out
}
