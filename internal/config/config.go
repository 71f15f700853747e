// Package config loads the runtime knobs listed in spec §6.
//
// Precedence, highest first: environment variables (CHARQ_* prefix),
// then an optional YAML overlay file, then the defaults below — the
// same precedence order the rest of the retrieved corpus uses for its
// own config loader, just with a YAML file instead of JSON.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob from spec §6 plus process bootstrap settings
// not named by the core (DB path, HTTP listen address).
type Config struct {
	WorkerCount     int           `yaml:"worker_count"`
	LeaseSeconds    int           `yaml:"lease_seconds"`
	ReaperInterval  int           `yaml:"reaper_interval_seconds"`
	Batch           int           `yaml:"batch"`
	MaxRetries      int           `yaml:"max_retries"`
	RestartBackoff  time.Duration `yaml:"-"`
	ShutdownGrace   int           `yaml:"shutdown_grace_seconds"`
	MaxTextBytes    int64         `yaml:"max_text_bytes"`
	FaultRate       float64       `yaml:"fault_rate"`
	WorkDelayMS     int           `yaml:"work_delay_ms"`
	RestartBackoffS int           `yaml:"restart_backoff_seconds"`

	DBPath     string `yaml:"db_path"`
	HTTPAddr   string `yaml:"http_addr"`
	QueueBound int    `yaml:"queue_bound"`
}

// fileConfig mirrors the subset of Config that may be overlaid from a
// YAML file; it exists separately so a partially-specified file never
// zeroes out fields it omits.
type fileConfig struct {
	WorkerCount     *int     `yaml:"worker_count"`
	LeaseSeconds    *int     `yaml:"lease_seconds"`
	ReaperInterval  *int     `yaml:"reaper_interval_seconds"`
	Batch           *int     `yaml:"batch"`
	MaxRetries      *int     `yaml:"max_retries"`
	RestartBackoffS *int     `yaml:"restart_backoff_seconds"`
	ShutdownGrace   *int     `yaml:"shutdown_grace_seconds"`
	MaxTextBytes    *int64   `yaml:"max_text_bytes"`
	FaultRate       *float64 `yaml:"fault_rate"`
	WorkDelayMS     *int     `yaml:"work_delay_ms"`
	DBPath          *string  `yaml:"db_path"`
	HTTPAddr        *string  `yaml:"http_addr"`
	QueueBound      *int     `yaml:"queue_bound"`
}

// Default returns the defaults named in spec §6.
func Default() Config {
	return Config{
		WorkerCount:     1,
		LeaseSeconds:    30,
		ReaperInterval:  5,
		Batch:           100,
		MaxRetries:      3,
		RestartBackoffS: 1,
		ShutdownGrace:   10,
		MaxTextBytes:    1 << 20, // 1 MiB
		FaultRate:       0,
		WorkDelayMS:     2000,
		DBPath:          "charq.db",
		HTTPAddr:        ":8080",
		QueueBound:      1024,
	}
}

// Load applies the file-then-env precedence described above on top of
// Default.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CHARQ_CONFIG_FILE"); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		applyFile(&cfg, fc)
	}

	applyEnv(&cfg)
	cfg.RestartBackoff = time.Duration(cfg.RestartBackoffS) * time.Second
	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.WorkerCount != nil {
		cfg.WorkerCount = *fc.WorkerCount
	}
	if fc.LeaseSeconds != nil {
		cfg.LeaseSeconds = *fc.LeaseSeconds
	}
	if fc.ReaperInterval != nil {
		cfg.ReaperInterval = *fc.ReaperInterval
	}
	if fc.Batch != nil {
		cfg.Batch = *fc.Batch
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.RestartBackoffS != nil {
		cfg.RestartBackoffS = *fc.RestartBackoffS
	}
	if fc.ShutdownGrace != nil {
		cfg.ShutdownGrace = *fc.ShutdownGrace
	}
	if fc.MaxTextBytes != nil {
		cfg.MaxTextBytes = *fc.MaxTextBytes
	}
	if fc.FaultRate != nil {
		cfg.FaultRate = *fc.FaultRate
	}
	if fc.WorkDelayMS != nil {
		cfg.WorkDelayMS = *fc.WorkDelayMS
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.HTTPAddr != nil {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	if fc.QueueBound != nil {
		cfg.QueueBound = *fc.QueueBound
	}
}

func applyEnv(cfg *Config) {
	envInt("CHARQ_WORKER_COUNT", &cfg.WorkerCount)
	envInt("CHARQ_LEASE_SECONDS", &cfg.LeaseSeconds)
	envInt("CHARQ_REAPER_INTERVAL", &cfg.ReaperInterval)
	envInt("CHARQ_BATCH", &cfg.Batch)
	envInt("CHARQ_MAX_RETRIES", &cfg.MaxRetries)
	envInt("CHARQ_RESTART_BACKOFF", &cfg.RestartBackoffS)
	envInt("CHARQ_SHUTDOWN_GRACE", &cfg.ShutdownGrace)
	envInt64("CHARQ_MAX_TEXT_BYTES", &cfg.MaxTextBytes)
	envFloat("CHARQ_FAULT_RATE", &cfg.FaultRate)
	envInt("CHARQ_WORK_DELAY_MS", &cfg.WorkDelayMS)
	envInt("CHARQ_QUEUE_BOUND", &cfg.QueueBound)
	envString("CHARQ_DB_PATH", &cfg.DBPath)
	envString("CHARQ_HTTP_ADDR", &cfg.HTTPAddr)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}
