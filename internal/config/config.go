package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sensorlab-io/sensorlab/internal/ids"
)

const (
	ProjectConfigSchemaV1    = 1
	DefaultProjectConfigPath = "sensorlab.yaml"
)

// Default timings, applied where the config leaves a field at zero.
const (
	DefaultReadyDelayMs  = 500
	DefaultStopGraceMs   = 2000
	DefaultSettleMs      = 1500
	DefaultWaitTimeoutMs = 30000
)

// ProjectConfigV1 is the per-repo lab config (sensorlab.yaml). The validator
// itself never needs one; the harness, runs and doctor commands do.
type ProjectConfigV1 struct {
	SchemaVersion int    `yaml:"schemaVersion"`
	OutRoot       string `yaml:"outRoot,omitempty"`

	Sensor    SensorConfigV1  `yaml:"sensor,omitempty"`
	Wait      WaitConfigV1    `yaml:"wait,omitempty"`
	Archive   ArchiveConfigV1 `yaml:"archive,omitempty"`
	Logging   LoggingConfigV1 `yaml:"logging,omitempty"`
	Cookbooks []CookbookV1    `yaml:"cookbooks,omitempty"`
}

// SensorConfigV1 describes how to spawn the external capture process.
// Command is an argv template; the placeholder {events} expands to the run's
// capture path.
type SensorConfigV1 struct {
	Command      []string `yaml:"command,omitempty"`
	ReadyDelayMs int      `yaml:"readyDelayMs,omitempty"`
	StopGraceMs  int      `yaml:"stopGraceMs,omitempty"`
}

// WaitConfigV1 bounds the capture-settle wait after the app exits: settled
// means no growth for SettleMs, with TimeoutMs as the hard stop.
type WaitConfigV1 struct {
	SettleMs  int `yaml:"settleMs,omitempty"`
	TimeoutMs int `yaml:"timeoutMs,omitempty"`
}

type ArchiveConfigV1 struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

type LoggingConfigV1 struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// CookbookV1 is one target application the sensor gets pointed at.
type CookbookV1 struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir,omitempty"`
	Env     []string `yaml:"env,omitempty"`    // required environment variable names
	Expect  string   `yaml:"expect,omitempty"` // expectation document path
}

// LoadFile parses and lints a project config. Parsing stays permissive about
// what the caller will actually use: a missing sensor command only fails the
// harness, not `runs list`.
func LoadFile(path string) (ProjectConfigV1, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ProjectConfigV1{}, err
	}

	var cfg ProjectConfigV1
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ProjectConfigV1{}, fmt.Errorf("invalid config yaml: %w", err)
	}

	if cfg.SchemaVersion == 0 {
		// Allow omission as v1 for early ergonomics.
		cfg.SchemaVersion = 1
	}
	if cfg.SchemaVersion != ProjectConfigSchemaV1 {
		return ProjectConfigV1{}, fmt.Errorf("unsupported config schemaVersion (expected 1)")
	}

	if cfg.Sensor.ReadyDelayMs < 0 || cfg.Sensor.StopGraceMs < 0 {
		return ProjectConfigV1{}, fmt.Errorf("sensor timings must be >= 0")
	}
	if cfg.Wait.SettleMs < 0 || cfg.Wait.TimeoutMs < 0 {
		return ProjectConfigV1{}, fmt.Errorf("wait timings must be >= 0")
	}

	seen := map[string]bool{}
	for i := range cfg.Cookbooks {
		cb := &cfg.Cookbooks[i]
		cb.Name = ids.SanitizeComponent(strings.TrimSpace(cb.Name))
		if cb.Name == "" {
			return ProjectConfigV1{}, fmt.Errorf("cookbook missing/invalid name")
		}
		if seen[cb.Name] {
			return ProjectConfigV1{}, fmt.Errorf("duplicate cookbook %q", cb.Name)
		}
		seen[cb.Name] = true
		if len(normalizeCommand(cb.Command)) == 0 {
			return ProjectConfigV1{}, fmt.Errorf("cookbook %q: missing command", cb.Name)
		}
		cb.Command = normalizeCommand(cb.Command)
		cb.Expect = strings.TrimSpace(cb.Expect)
		if cb.Expect == "" {
			return ProjectConfigV1{}, fmt.Errorf("cookbook %q: missing expect", cb.Name)
		}
		cb.Env = normalizeEnvNames(cb.Env)
	}
	return cfg, nil
}

func FindCookbook(cfg ProjectConfigV1, name string) *CookbookV1 {
	name = ids.SanitizeComponent(strings.TrimSpace(name))
	for i := range cfg.Cookbooks {
		if cfg.Cookbooks[i].Name == name {
			return &cfg.Cookbooks[i]
		}
	}
	return nil
}

func normalizeCommand(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, part := range in {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeEnvNames(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
