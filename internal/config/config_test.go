package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "_", cfg.LocationIdentifierSeparator)
	assert.Zero(t, cfg.LocationIdentifierZeroPaddedDigits)
	assert.False(t, cfg.IgnoreMeasurementID)
	assert.Empty(t, cfg.DateTimeFormats)
	assert.Empty(t, cfg.Grades)
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `
date_time_formats:
  - "2006-01-02 15:04:05"
time_formats:
  - "15:04:05"
grades:
  " Good ": "10"
  Poor: Poor
location_identifier_separator: "-"
location_identifier_zero_padded_digits: 8
ignore_measurement_id: true
utc_offset: "-05:30"
schedule: "0 * * * *"
nats_url: nats://localhost:4222
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"2006-01-02 15:04:05"}, cfg.DateTimeFormats)
	assert.Equal(t, []string{"15:04:05"}, cfg.TimeFormats)
	assert.Equal(t, "-", cfg.LocationIdentifierSeparator)
	assert.Equal(t, 8, cfg.LocationIdentifierZeroPaddedDigits)
	assert.True(t, cfg.IgnoreMeasurementID)
	assert.Equal(t, "0 * * * *", cfg.Schedule)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, DefaultNATSSubject, cfg.NATSSubject)

	grade, ok := cfg.Grade("GOOD")
	assert.True(t, ok)
	assert.Equal(t, "10", grade)
	_, ok = cfg.Grade("Excellent")
	assert.False(t, ok)

	offset, err := cfg.Offset()
	require.NoError(t, err)
	assert.Equal(t, -(5*time.Hour + 30*time.Minute), offset)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "location_identifier_separator: \"-\"\n")
	envPath := writeFile(t, ".env", "TELEGRAM_BOT_TOKEN=from-file\nQREVIEW_INBOX_DIR=/from/file\n")

	t.Setenv("QREVIEW_LOCATION_IDENTIFIER_SEPARATOR", "#")
	t.Setenv("QREVIEW_GRADES", "Good:1,Fair:2")
	t.Setenv("QREVIEW_INBOX_DIR", "/from/env")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path, envPath)
	require.NoError(t, err)

	assert.Equal(t, "#", cfg.LocationIdentifierSeparator)
	assert.Equal(t, map[string]string{"good": "1", "fair": "2"}, cfg.Grades)
	assert.Equal(t, "/from/env", cfg.InboxDir, "environment wins over env file")
	assert.Equal(t, "from-file", cfg.TelegramBotToken)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "bad.yaml", "grades: [1, 2"), "")
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(writeFile(t, "cron.yaml", "schedule: every minute\n"), "")
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(map[string]string{
		SettingDateTimeFormats:                    "2006-01-02 15:04:05,02/01/2006 15:04",
		SettingTimeFormats:                        "15:04:05,",
		SettingGrades:                             "Good:10,Poor:Poor,broken",
		SettingLocationIdentifierSeparator:        " ",
		SettingLocationIdentifierZeroPaddedDigits: "not a number",
		SettingIgnoreMeasurementID:                "true",
	})

	assert.Equal(t, []string{"2006-01-02 15:04:05", "02/01/2006 15:04"}, cfg.DateTimeFormats)
	assert.Equal(t, []string{"15:04:05"}, cfg.TimeFormats)
	assert.Equal(t, map[string]string{"good": "10", "poor": "Poor"}, cfg.Grades)
	assert.Equal(t, " ", cfg.LocationIdentifierSeparator)
	assert.Equal(t, DefaultLocationIdentifierZeroPaddedDigits, cfg.LocationIdentifierZeroPaddedDigits)
	assert.True(t, cfg.IgnoreMeasurementID)
}

func TestLoadSettingsBlock(t *testing.T) {
	path := writeFile(t, "config.yaml", `
settings:
  DateTimeFormats: "2006-01-02 15:04:05,02/01/2006 15:04"
  Grades: "Good:10,Poor:Poor"
  LocationIdentifierZeroPaddedDigits: "6"
  IgnoreMeasurementId: "true"
location_identifier_zero_padded_digits: 4
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"2006-01-02 15:04:05", "02/01/2006 15:04"}, cfg.DateTimeFormats)
	assert.Equal(t, map[string]string{"good": "10", "poor": "Poor"}, cfg.Grades)
	assert.True(t, cfg.IgnoreMeasurementID)
	assert.Equal(t, 4, cfg.LocationIdentifierZeroPaddedDigits, "typed key wins over settings")
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
}

func TestFromSettingsEmpty(t *testing.T) {
	assert.Equal(t, Default(), FromSettings(nil))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.UTCOffset = "CET"
	assert.ErrorContains(t, cfg.Validate(), "invalid utc_offset")

	cfg = Default()
	cfg.LocationIdentifierZeroPaddedDigits = -1
	assert.ErrorContains(t, cfg.Validate(), "cannot be negative")
}
