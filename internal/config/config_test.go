package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTemplateValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gardenctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Validate(path)
	if err != nil {
		t.Fatalf("validate template: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7320" || cfg.AutosaveInterval != "30s" || !cfg.JournalEnabled {
		t.Fatalf("unexpected template values: %+v", cfg)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestExampleMatchesTemplate(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "cmd", "gardenctl", "gardenctl.toml"))
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	if string(raw) != Template {
		t.Fatalf("cmd/gardenctl/gardenctl.toml drifted from the template")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "listen = \"127.0.0.1:1\"\n",
		"bad level":        "log_level = \"loud\"\n",
		"bad duration":     "autosave_interval = \"soon\"\n",
		"zero interval":    "auto_save = true\nautosave_interval = \"0s\"\n",
		"non-http stats":   "[stats]\nwebhook_url = \"ftp://x\"\n",
		"wrong value type": "auto_save = \"yes\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Validate(path)
			if err == nil {
				t.Fatalf("expected error for %q", content)
			}
			if name == "unknown key" && !strings.Contains(err.Error(), "listen") {
				t.Fatalf("strict error should name the key: %v", err)
			}
		})
	}
}
