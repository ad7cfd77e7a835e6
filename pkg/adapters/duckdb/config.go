package duckdb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific options.
// Decoded from the profile's options map using mapstructure.
type Params struct {
	// Extensions to install and load, comma separated (e.g., "httpfs,json").
	Extensions []string `mapstructure:"extensions"`

	// ReadOnly opens the database file in read-only mode.
	ReadOnly bool `mapstructure:"read_only"`

	// Settings collects every other option. Each is applied with SET.
	Settings map[string]any `mapstructure:",remain"`
}

var settingName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseParams decodes adapter options into Params.
func parseParams(opts map[string]string) (*Params, error) {
	p := &Params{}
	if len(opts) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           p,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("invalid duckdb options: %w", err)
	}

	exts := p.Extensions[:0]
	for _, e := range p.Extensions {
		if e = strings.TrimSpace(e); e != "" {
			exts = append(exts, e)
		}
	}
	p.Extensions = exts

	for name := range p.Settings {
		if !settingName.MatchString(name) {
			return nil, fmt.Errorf("invalid duckdb setting name %q", name)
		}
	}
	return p, nil
}

// setupStatements returns the statements run after connecting.
func (p *Params) setupStatements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		if !settingName.MatchString(ext) {
			continue
		}
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	names := make([]string, 0, len(p.Settings))
	for name := range p.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := strings.ReplaceAll(fmt.Sprint(p.Settings[name]), "'", "''")
		stmts = append(stmts, fmt.Sprintf("SET %s = '%s'", name, value))
	}
	return stmts
}
