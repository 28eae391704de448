// Package config loads and validates the build configuration.
//
// The default configuration is compiled into the binary as HCL. An
// override file may be supplied in HCL (.hcl) or TOML (.toml); it
// replaces the default entirely rather than merging with it.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/pelletier/go-toml/v2"

	"github.com/agentic-research/tflmake/api"
)

//go:embed defaults.hcl
var defaultsHCL []byte

// ErrInvalid marks a configuration that decoded but failed validation.
var ErrInvalid = errors.New("invalid build configuration")

// Default returns the compiled-in configuration.
func Default() (*api.BuildConfig, error) {
	return Parse("defaults.hcl", defaultsHCL)
}

// Load reads a configuration file. The decoder is chosen by extension.
func Load(path string) (*api.BuildConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes src as HCL or TOML depending on the extension of name,
// then validates the result.
func Parse(name string, src []byte) (*api.BuildConfig, error) {
	cfg := &api.BuildConfig{}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".hcl":
		if err := hclsimple.Decode(filepath.Base(name), src, nil, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	case ".toml":
		if err := toml.Unmarshal(src, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .hcl or .toml)", filepath.Ext(name))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and the cross references between
// build_order and the target blocks.
func Validate(cfg *api.BuildConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	seen := make(map[string]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate target %q", ErrInvalid, t.Name)
		}
		seen[t.Name] = true
	}
	for _, name := range cfg.BuildOrder {
		if !seen[name] {
			return fmt.Errorf("%w: build_order names undefined target %q", ErrInvalid, name)
		}
	}
	return nil
}
