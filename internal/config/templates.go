package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# BitsOfTrade discipline engine configuration

[database]
# path = "~/.config/bitsoftrade/bitsoftrade.db"

[logging]
level = "info"
console = true
file = true
max_size = 100     # megabytes
max_backups = 7
max_age = 30       # days

[discipline]
yellow_cooldown_minutes = 45
red_cooldown_minutes = 120

[insights]
high_confidence_min = 7
low_confidence_max = 3
momentum_window_days = 7
recompute_workers = 4

[notifications]
enabled = false
level = "escalations_only"   # all, escalations_only, errors_only

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""
`

// createTemplateConfig writes a commented config template so a first run
// leaves something editable behind.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
