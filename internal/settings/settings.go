// Package settings holds the optimizer configuration and the process-wide
// store the CLI fills from defaults, weft.toml, environment and flags.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "weft.toml"

// Environment variables that override file settings.
const (
	EnvValueNumbering     = "WEFT_OPT_VALUE_NUMBERING"
	EnvInlineDCE          = "WEFT_OPT_INLINE_DCE"
	EnvMaxIterations      = "WEFT_OPT_MAX_ITERATIONS"
	EnvMaxOuterIterations = "WEFT_OPT_MAX_OUTER_ITERATIONS"
)

// Settings configures the optimizer.
type Settings struct {
	ForwardDataflow    bool `toml:"forward_dataflow"`
	ValueNumbering     bool `toml:"value_numbering"`
	InlineDCE          bool `toml:"inline_dead_code_elim"`
	ContinuationFusion bool `toml:"continuation_fusion"`
	WaitLifting        bool `toml:"wait_lifting"`
	// MaxIterations caps the per-function dataflow fixed point.
	MaxIterations int `toml:"max_iterations"`
	// MaxOuterIterations caps the dataflow/fusion/cleanup driver loop.
	MaxOuterIterations int `toml:"max_outer_iterations"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		ForwardDataflow:    true,
		ValueNumbering:     true,
		ContinuationFusion: true,
		WaitLifting:        true,
		MaxIterations:      10,
		MaxOuterIterations: 3,
	}
}

// Validate rejects settings the optimizer cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if s.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", s.MaxIterations))
	}
	if s.MaxOuterIterations <= 0 {
		errs = append(errs, fmt.Errorf("max_outer_iterations must be positive, got %d", s.MaxOuterIterations))
	}
	return errors.Join(errs...)
}

type fileConfig struct {
	Optimizer Settings `toml:"optimizer"`
}

// Load reads the [optimizer] table of a TOML file over base. Keys missing
// from the file keep their base value; unknown keys are an error.
func Load(path string, base Settings) (Settings, error) {
	cfg := fileConfig{Optimizer: base}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return base, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return base, fmt.Errorf("%s: unknown settings: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("optimizer") {
		if err := cfg.Optimizer.Validate(); err != nil {
			return base, fmt.Errorf("%s: %w", path, err)
		}
	}
	return cfg.Optimizer, nil
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// ApplyEnv overrides s with any WEFT_OPT_* variables that are set.
func ApplyEnv(s Settings) Settings {
	if env.Has(EnvValueNumbering) {
		s.ValueNumbering = env.Bool(EnvValueNumbering)
	}
	if env.Has(EnvInlineDCE) {
		s.InlineDCE = env.Bool(EnvInlineDCE)
	}
	s.MaxIterations = env.Int(EnvMaxIterations, s.MaxIterations)
	s.MaxOuterIterations = env.Int(EnvMaxOuterIterations, s.MaxOuterIterations)
	return s
}

var (
	mu      sync.RWMutex
	current = Default()
)

// Current returns the process-wide settings.
func Current() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set replaces the process-wide settings after validating them.
func Set(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	mu.Lock()
	current = s
	mu.Unlock()
	return nil
}
