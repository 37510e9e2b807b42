// Package simconfig holds the engine's ambient configuration: scheduler
// bounds, cycle-resolution policy, data directory, and log level. It is a
// plain struct plus DefaultConfig/ValidateConfig, keyed to this simulator's
// knobs instead of network/peer settings.
package simconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mycoscheduler.dev/sim/internal/cycle"
	"mycoscheduler.dev/sim/internal/sched"
)

// Config is the engine's full set of tunables, loadable from flags, a file,
// or defaults.
type Config struct {
	DataDir      string `json:"data_dir"`
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
	MaxRounds    uint32 `json:"max_rounds"`
	EffectBudget uint64 `json:"effect_budget"`
	CyclePolicy  string `json:"cycle_policy"`
	CycleWindow  int    `json:"cycle_window"`
	CycleHasher  string `json:"cycle_hasher"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedLogFormats = map[string]struct{}{
	"text": {},
	"json": {},
}

var cyclePolicies = map[string]sched.Policy{
	"freeze_last_stable": sched.PolicyFreezeLastStable,
	"clamp_commutative":  sched.PolicyClampCommutative,
	"parity_quench":      sched.PolicyParityQuench,
}

var cycleHashers = map[string]cycle.Hasher{
	"murmur3": cycle.HasherMurmur3,
	"fnv":     cycle.HasherFNV,
}

// DefaultDataDir returns $HOME/.mycosim, or .mycosim if the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mycosim"
	}
	return filepath.Join(home, ".mycosim")
}

// DefaultConfig returns the engine's out-of-the-box configuration. Unlike
// sched.DefaultOptions (which scales MaxRounds to a particular chunk's bit
// counts), these defaults are chunk-independent. The engine does not read
// MaxRounds: it takes each chunk's MaxRounds from sched.DefaultOptions at
// load time.
func DefaultConfig() Config {
	return Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     "info",
		LogFormat:    "text",
		MaxRounds:    256,
		EffectBudget: sched.DefaultEffectBudget,
		CyclePolicy:  "freeze_last_stable",
		CycleWindow:  16,
		CycleHasher:  "murmur3",
	}
}

// ValidateConfig checks that cfg's fields are all well-formed and its
// enumerated fields name a recognized option.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	logFormat := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if _, ok := allowedLogFormats[logFormat]; !ok {
		return fmt.Errorf("invalid log_format %q", cfg.LogFormat)
	}
	if cfg.MaxRounds == 0 {
		return errors.New("max_rounds must be > 0")
	}
	if cfg.EffectBudget == 0 {
		return errors.New("effect_budget must be > 0")
	}
	if _, ok := cyclePolicies[strings.ToLower(strings.TrimSpace(cfg.CyclePolicy))]; !ok {
		return fmt.Errorf("invalid cycle_policy %q", cfg.CyclePolicy)
	}
	if cfg.CycleWindow <= 0 {
		return errors.New("cycle_window must be > 0")
	}
	if _, ok := cycleHashers[strings.ToLower(strings.TrimSpace(cfg.CycleHasher))]; !ok {
		return fmt.Errorf("invalid cycle_hasher %q", cfg.CycleHasher)
	}
	return nil
}

// Policy resolves cfg's CyclePolicy string to a sched.Policy. Call only
// after ValidateConfig has succeeded.
func Policy(cfg Config) sched.Policy {
	return cyclePolicies[strings.ToLower(strings.TrimSpace(cfg.CyclePolicy))]
}

// Hasher resolves cfg's CycleHasher string to a cycle.Hasher. Call only
// after ValidateConfig has succeeded.
func Hasher(cfg Config) cycle.Hasher {
	return cycleHashers[strings.ToLower(strings.TrimSpace(cfg.CycleHasher))]
}
