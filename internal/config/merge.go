package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Merged is the resolved view the harness and runs commands consume.
// Source fields are informational for operator UX/debugging.
type Merged struct {
	Project    ProjectConfigV1
	ConfigPath string
	HasConfig  bool

	OutRoot string
	Source  string

	// SensorBin overrides argv[0] of sensor.command when set.
	SensorBin       string
	SensorBinSource string

	LogLevel       string
	LogLevelSource string
	LogFormat      string

	ReadyDelayMs int
	StopGraceMs  int
	SettleMs     int
	TimeoutMs    int

	ArchiveEnabled bool
	ArchivePath    string
}

// LoadMerged resolves the effective config.
// Precedence:
//  1. CLI flags
//  2. env vars (SENSORLAB_*)
//  3. project config (sensorlab.yaml)
//  4. defaults
func LoadMerged(flagConfigPath string, flagOutRoot string) (Merged, error) {
	configPath := strings.TrimSpace(flagConfigPath)
	if configPath == "" {
		configPath = DefaultProjectConfigPath
	}

	res := Merged{
		ConfigPath:     configPath,
		OutRoot:        ".sensorlab",
		Source:         "default",
		LogLevel:       "info",
		LogLevelSource: "default",
		LogFormat:      "console",

		ReadyDelayMs: DefaultReadyDelayMs,
		StopGraceMs:  DefaultStopGraceMs,
		SettleMs:     DefaultSettleMs,
		TimeoutMs:    DefaultWaitTimeoutMs,

		ArchiveEnabled: true,
	}

	cfg, hasCfg, err := loadProject(configPath)
	if err != nil {
		return Merged{}, err
	}
	res.Project = cfg
	res.HasConfig = hasCfg

	if strings.TrimSpace(flagOutRoot) != "" {
		res.OutRoot = strings.TrimSpace(flagOutRoot)
		res.Source = "flag"
	} else if v := strings.TrimSpace(os.Getenv("SENSORLAB_OUT_ROOT")); v != "" {
		res.OutRoot = v
		res.Source = "env:SENSORLAB_OUT_ROOT"
	} else if hasCfg && strings.TrimSpace(cfg.OutRoot) != "" {
		res.OutRoot = cfg.OutRoot
		res.Source = configPath
	}

	if v := strings.TrimSpace(os.Getenv("SENSORLAB_SENSOR_BIN")); v != "" {
		res.SensorBin = v
		res.SensorBinSource = "env:SENSORLAB_SENSOR_BIN"
	}

	if v := strings.TrimSpace(os.Getenv("SENSORLAB_LOG_LEVEL")); v != "" {
		res.LogLevel = v
		res.LogLevelSource = "env:SENSORLAB_LOG_LEVEL"
	} else if hasCfg && strings.TrimSpace(cfg.Logging.Level) != "" {
		res.LogLevel = cfg.Logging.Level
		res.LogLevelSource = configPath
	}
	if hasCfg && strings.TrimSpace(cfg.Logging.Format) != "" {
		res.LogFormat = cfg.Logging.Format
	}

	if hasCfg {
		if cfg.Sensor.ReadyDelayMs > 0 {
			res.ReadyDelayMs = cfg.Sensor.ReadyDelayMs
		}
		if cfg.Sensor.StopGraceMs > 0 {
			res.StopGraceMs = cfg.Sensor.StopGraceMs
		}
		if cfg.Wait.SettleMs > 0 {
			res.SettleMs = cfg.Wait.SettleMs
		}
		if cfg.Wait.TimeoutMs > 0 {
			res.TimeoutMs = cfg.Wait.TimeoutMs
		}
		if cfg.Archive.Enabled != nil {
			res.ArchiveEnabled = *cfg.Archive.Enabled
		}
	}

	res.ArchivePath = strings.TrimSpace(cfg.Archive.Path)
	if res.ArchivePath == "" {
		res.ArchivePath = filepath.Join(res.OutRoot, "archive.db")
	}
	return res, nil
}

// RunsDir is where the harness allocates per-run directories.
func (m Merged) RunsDir() string {
	return filepath.Join(m.OutRoot, "runs")
}

// SensorCommand is the effective sensor argv template, with the binary
// override applied.
func (m Merged) SensorCommand() []string {
	cmd := normalizeCommand(m.Project.Sensor.Command)
	if len(cmd) == 0 {
		return nil
	}
	if m.SensorBin != "" {
		out := append([]string{m.SensorBin}, cmd[1:]...)
		return out
	}
	return cmd
}

func loadProject(path string) (ProjectConfigV1, bool, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectConfigV1{}, false, nil
		}
		return ProjectConfigV1{}, false, err
	}
	return cfg, true, nil
}
