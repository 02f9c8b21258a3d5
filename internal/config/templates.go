package config

import (
	"fmt"
	"os"
	"path/filepath"
)

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

// Template matches the service defaults.
const Template = `# gardenctl config. Every key is optional.

log_level = "info"
data_dir = "data"
state_dir = "state"

# relative to data_dir
opcode_file = "opcode.txt"

# relative to state_dir
garden_file = "gardens.json"
history_db = "history.db"
guide_output = "opcode.discovered.txt"

auto_save = true
autosave_interval = "30s"

listen_addr = "127.0.0.1:7320"
cors_origins = ["http://localhost:3000"]

# bearer token for POST routes and /ingest; empty leaves them open
control_token = ""

journal_enabled = true
guide_enabled = false

[stats]
webhook_url = ""
webhook_token = ""
user_name = ""
`
