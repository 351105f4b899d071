package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sheetdrip/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheetdrip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  addr: \":9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "sheetdrip.db", cfg.Storage.Path)
	assert.Equal(t, "webhook", cfg.Delivery.Driver)
	assert.Equal(t, 30*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, 5, cfg.Automator.BatchSize)
	assert.Equal(t, 1.0, cfg.Automator.IntervalMinutes)
	assert.Equal(t, domain.DefaultSheetName, cfg.Automator.SheetName)
	assert.Equal(t, 50, cfg.Events.Capacity)
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  driver: bolt
  path: /var/lib/sheetdrip/queue.db
logging:
  level: debug
  format: json
delivery:
  timeout: 5s
  max_per_minute: 10
automator:
  webhook_url: https://script.google.com/macros/s/abc/exec
  batch_size: 3
  interval_minutes: 2.5
  sheet_name: Leads
  guestbook_urls:
    - https://gb.example.com/sign
  custom_email: ada@example.com
autostart:
  cron: "0 9 * * 1-5"
`))
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, 10, cfg.Delivery.MaxPerMinute)
	assert.Equal(t, 3, cfg.Automator.BatchSize)
	assert.Equal(t, 2.5, cfg.Automator.IntervalMinutes)
	assert.Equal(t, []string{"https://gb.example.com/sign"}, cfg.Automator.GuestbookURLs)
	assert.Equal(t, "0 9 * * 1-5", cfg.AutoStart.Cron)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown storage driver", "storage:\n  driver: redis\n"},
		{"shell without command", "delivery:\n  driver: shell\n"},
		{"bad webhook url", "automator:\n  webhook_url: not a url\n"},
		{"negative batch size", "automator:\n  batch_size: -1\n"},
		{"bad cron", "autostart:\n  cron: \"every day\"\n"},
		{"bad level", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateAutomator(t *testing.T) {
	ok := domain.DefaultAutomatorConfig()
	assert.NoError(t, ValidateAutomator(ok))

	bad := ok
	bad.BatchSize = 0
	assert.Error(t, ValidateAutomator(bad))

	bad = ok
	bad.IntervalMinutes = 0
	assert.Error(t, ValidateAutomator(bad))

	bad = ok
	bad.CustomEmail = "nope"
	assert.Error(t, ValidateAutomator(bad))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
