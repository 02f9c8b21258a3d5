package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/gardenctl/internal/config"
	"github.com/danmuck/gardenctl/internal/service"
)

func loadServiceConfig(path string) (service.Config, error) {
	cfg := service.DefaultConfig()

	var raw config.File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return service.Config{}, fmt.Errorf("load gardenctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return service.Config{}, fmt.Errorf("load gardenctl config: unknown keys %v", undecoded)
	}
	if err := config.ValidateFile(raw); err != nil {
		return service.Config{}, fmt.Errorf("load gardenctl config: %w", err)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}
	if meta.IsDefined("state_dir") {
		cfg.StateDir = strings.TrimSpace(raw.StateDir)
	}
	if meta.IsDefined("opcode_file") {
		cfg.OpcodeFile = strings.TrimSpace(raw.OpcodeFile)
	}
	if meta.IsDefined("garden_file") {
		cfg.GardenFile = strings.TrimSpace(raw.GardenFile)
	}
	if meta.IsDefined("auto_save") {
		cfg.AutoSave = raw.AutoSave
	}
	if meta.IsDefined("autosave_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AutosaveInterval))
		if err != nil {
			return service.Config{}, fmt.Errorf("parse autosave_interval: %w", err)
		}
		cfg.AutosaveInterval = d
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("journal_enabled") {
		cfg.JournalEnabled = raw.JournalEnabled
	}
	if meta.IsDefined("history_db") {
		cfg.HistoryDB = strings.TrimSpace(raw.HistoryDB)
	}
	if meta.IsDefined("guide_enabled") {
		cfg.GuideEnabled = raw.GuideEnabled
	}
	if meta.IsDefined("guide_output") {
		cfg.GuideOutput = strings.TrimSpace(raw.GuideOutput)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if meta.IsDefined("control_token") {
		cfg.ControlToken = strings.TrimSpace(raw.ControlToken)
	}

	if meta.IsDefined("stats", "webhook_url") {
		cfg.Stats.WebhookURL = strings.TrimSpace(raw.Stats.WebhookURL)
	}
	if meta.IsDefined("stats", "webhook_token") {
		cfg.Stats.WebhookToken = strings.TrimSpace(raw.Stats.WebhookToken)
	}
	if meta.IsDefined("stats", "user_name") {
		cfg.Stats.UserName = strings.TrimSpace(raw.Stats.UserName)
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
