// Package config describes the gardenctl TOML file and checks it strictly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/gardenctl/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk config. Every key is optional; absent keys keep the
// service defaults.
type File struct {
	LogLevel         string    `toml:"log_level"`
	DataDir          string    `toml:"data_dir"`
	StateDir         string    `toml:"state_dir"`
	OpcodeFile       string    `toml:"opcode_file"`
	GardenFile       string    `toml:"garden_file"`
	AutoSave         bool      `toml:"auto_save"`
	AutosaveInterval string    `toml:"autosave_interval"`
	ListenAddr       string    `toml:"listen_addr"`
	JournalEnabled   bool      `toml:"journal_enabled"`
	HistoryDB        string    `toml:"history_db"`
	GuideEnabled     bool      `toml:"guide_enabled"`
	GuideOutput      string    `toml:"guide_output"`
	CORSOrigins      []string  `toml:"cors_origins"`
	ControlToken     string    `toml:"control_token"`
	Stats            StatsFile `toml:"stats"`
}

type StatsFile struct {
	WebhookURL   string `toml:"webhook_url"`
	WebhookToken string `toml:"webhook_token"`
	UserName     string `toml:"user_name"`
}

// Validate decodes path rejecting unknown keys and checks the values that
// would otherwise only fail at startup.
func Validate(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return File{}, fmt.Errorf("config parse failed (%s): unknown keys %v", path, keys)
		}
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := ValidateFile(cfg); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func ValidateFile(cfg File) error {
	if lvl := strings.TrimSpace(cfg.LogLevel); lvl != "" && !logging.ValidLevel(lvl) {
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if raw := strings.TrimSpace(cfg.AutosaveInterval); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("autosave_interval: %w", err)
		}
		if cfg.AutoSave && d <= 0 {
			return fmt.Errorf("autosave_interval must be positive")
		}
	}
	if url := strings.TrimSpace(cfg.Stats.WebhookURL); url != "" &&
		!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("stats.webhook_url must be http(s)")
	}
	return nil
}
