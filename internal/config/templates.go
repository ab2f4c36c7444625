package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# edgar-tracker Configuration

[polling]
# Base interval between polls of the same ticker (e.g. "15m", "1h")
interval = "15m"
# How often the scheduler checks for due tickers
tick = "5s"
# Maximum number of tickers polled concurrently
max_workers = 4
# Consecutive failures before a ticker is flagged degraded
max_failures = 5
# Backoff multiplier after a transport failure
unavailable_factor = 2.0
# Backoff multiplier after the registry signals throttling
rate_limit_factor = 4.0
# Maximum backoff delay
backoff_cap = "4h"
# Let a manual refresh skip per-ticker failure backoff
manual_bypasses_backoff = false
# How long shutdown waits for in-flight poll cycles
shutdown_grace = "30s"

[source]
# Identity sent to the registry on every request. REQUIRED.
# The SEC asks for a descriptive agent with contact details, e.g.
# "edgar-tracker/0.1 (jane@example.com)"
user_agent = ""
# Most-recent filings fetched per ticker per poll
filings_per_ticker = 50
# Minimum delay between any two registry requests, shared across workers
throttle_delay = "200ms"
# HTTP timeout per request
timeout = "30s"
# Local document cache directory (empty = <config dir>/cache)
cache_dir = ""

[storage]
# SQLite database path (empty = <config dir>/tracker.db)
db_path = ""

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"

[notifications]
# Enable notifications for new filings
enabled = false

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""
`

// createTemplateConfig writes a commented config template on first run.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created config template at %s\n", path)
	return nil
}
