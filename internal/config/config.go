// Package config loads the importer configuration
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultLocationIdentifierSeparator        = "_"
	DefaultLocationIdentifierZeroPaddedDigits = 0
	DefaultIgnoreMeasurementID                = false
	DefaultDatabasePath                       = "data/qreview.db"
	DefaultInboxDir                           = "inbox"
	DefaultArchiveDir                         = "archive"
	DefaultSchedule                           = "*/5 * * * *"
	DefaultMetricsAddr                        = ":9102"
	DefaultNATSSubject                        = "qreview.imports"
)

// Config holds the importer configuration
type Config struct {
	// Go reference layouts; empty lists select free-form parsing.
	DateTimeFormats []string `yaml:"date_time_formats"`
	TimeFormats     []string `yaml:"time_formats"`

	// Grades maps the export's quality text to a grade code or display name.
	Grades map[string]string `yaml:"grades"`

	LocationIdentifierSeparator        string `yaml:"location_identifier_separator"`
	LocationIdentifierZeroPaddedDigits int    `yaml:"location_identifier_zero_padded_digits"`
	IgnoreMeasurementID                bool   `yaml:"ignore_measurement_id"`
	UTCOffset                          string `yaml:"utc_offset"` // e.g. "+01:00"

	DatabasePath string `yaml:"database_path"`
	InboxDir     string `yaml:"inbox_dir"`
	ArchiveDir   string `yaml:"archive_dir"`
	Schedule     string `yaml:"schedule"` // Standard 5-field cron spec
	MetricsAddr  string `yaml:"metrics_addr"`
	NATSURL      string `yaml:"nats_url"` // Import events are not published when empty
	NATSSubject  string `yaml:"nats_subject"`

	TelegramBotToken string `yaml:"-"`
	OpenAIAPIKey     string `yaml:"-"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		DateTimeFormats:                    []string{},
		TimeFormats:                        []string{},
		Grades:                             map[string]string{},
		LocationIdentifierSeparator:        DefaultLocationIdentifierSeparator,
		LocationIdentifierZeroPaddedDigits: DefaultLocationIdentifierZeroPaddedDigits,
		IgnoreMeasurementID:                DefaultIgnoreMeasurementID,
		DatabasePath:                       DefaultDatabasePath,
		InboxDir:                           DefaultInboxDir,
		ArchiveDir:                         DefaultArchiveDir,
		Schedule:                           DefaultSchedule,
		MetricsAddr:                        DefaultMetricsAddr,
		NATSSubject:                        DefaultNATSSubject,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, the optional dotenv file at envPath and finally the environment.
// The YAML file may carry a plugin-style "settings" map; its typed keys
// override those settings.
func Load(path, envPath string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var file struct {
			Settings map[string]string `yaml:"settings"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg = FromSettings(file.Settings)

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envPath != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envPath, err)
		}
	}

	cfg.applyEnv()
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Setting names of the plugin-style settings map
const (
	SettingDateTimeFormats                    = "DateTimeFormats"
	SettingTimeFormats                        = "TimeFormats"
	SettingGrades                             = "Grades"
	SettingLocationIdentifierSeparator        = "LocationIdentifierSeparator"
	SettingLocationIdentifierZeroPaddedDigits = "LocationIdentifierZeroPaddedDigits"
	SettingIgnoreMeasurementID                = "IgnoreMeasurementId"
)

// FromSettings builds a configuration from a flat settings map, where lists
// are comma-separated and maps are comma-separated "key:value" pairs.
// Unparseable or missing values fall back to the defaults.
func FromSettings(settings map[string]string) *Config {
	cfg := Default()
	cfg.applySettings(settings)
	cfg.sanitize()
	return cfg
}

func (c *Config) applySettings(settings map[string]string) {
	if v, ok := settings[SettingLocationIdentifierSeparator]; ok {
		c.LocationIdentifierSeparator = v
	}
	if v, ok := getInt(settings, SettingLocationIdentifierZeroPaddedDigits); ok {
		c.LocationIdentifierZeroPaddedDigits = v
	}
	if v, ok := getBool(settings, SettingIgnoreMeasurementID); ok {
		c.IgnoreMeasurementID = v
	}
	if v := getStrings(settings, SettingDateTimeFormats); v != nil {
		c.DateTimeFormats = v
	}
	if v := getStrings(settings, SettingTimeFormats); v != nil {
		c.TimeFormats = v
	}
	if v := getMap(settings, SettingGrades); v != nil {
		c.Grades = v
	}
}

// Environment variables and the settings they override
var envSettings = map[string]string{
	"QREVIEW_DATE_TIME_FORMATS":                      SettingDateTimeFormats,
	"QREVIEW_TIME_FORMATS":                           SettingTimeFormats,
	"QREVIEW_GRADES":                                 SettingGrades,
	"QREVIEW_LOCATION_IDENTIFIER_SEPARATOR":          SettingLocationIdentifierSeparator,
	"QREVIEW_LOCATION_IDENTIFIER_ZERO_PADDED_DIGITS": SettingLocationIdentifierZeroPaddedDigits,
	"QREVIEW_IGNORE_MEASUREMENT_ID":                  SettingIgnoreMeasurementID,
}

func (c *Config) applyEnv() {
	settings := make(map[string]string)
	for env, setting := range envSettings {
		if v, ok := os.LookupEnv(env); ok {
			settings[setting] = v
		}
	}
	c.applySettings(settings)

	overrideString(&c.UTCOffset, "QREVIEW_UTC_OFFSET")
	overrideString(&c.DatabasePath, "QREVIEW_DATABASE_PATH")
	overrideString(&c.InboxDir, "QREVIEW_INBOX_DIR")
	overrideString(&c.ArchiveDir, "QREVIEW_ARCHIVE_DIR")
	overrideString(&c.Schedule, "QREVIEW_SCHEDULE")
	overrideString(&c.MetricsAddr, "QREVIEW_METRICS_ADDR")
	overrideString(&c.NATSURL, "QREVIEW_NATS_URL")
	overrideString(&c.NATSSubject, "QREVIEW_NATS_SUBJECT")
	overrideString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	overrideString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
}

func overrideString(target *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*target = v
	}
}

// sanitize replaces empty values with their defaults and folds grade names.
func (c *Config) sanitize() {
	if c.DateTimeFormats == nil {
		c.DateTimeFormats = []string{}
	}
	if c.TimeFormats == nil {
		c.TimeFormats = []string{}
	}

	grades := make(map[string]string, len(c.Grades))
	for name, grade := range c.Grades {
		grades[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(grade)
	}
	c.Grades = grades

	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.NATSSubject == "" {
		c.NATSSubject = DefaultNATSSubject
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.LocationIdentifierZeroPaddedDigits < 0 {
		return fmt.Errorf("location_identifier_zero_padded_digits cannot be negative: %d", c.LocationIdentifierZeroPaddedDigits)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	if _, err := c.Offset(); err != nil {
		return err
	}
	return nil
}

// Offset returns the configured UTC offset of measurement timestamps
func (c *Config) Offset() (time.Duration, error) {
	if strings.TrimSpace(c.UTCOffset) == "" {
		return 0, nil
	}

	t, err := time.Parse("-07:00", strings.TrimSpace(c.UTCOffset))
	if err != nil {
		return 0, fmt.Errorf("invalid utc_offset %q: %w", c.UTCOffset, err)
	}
	_, seconds := t.Zone()
	return time.Duration(seconds) * time.Second, nil
}

// Grade looks up the grade configured for a quality text, ignoring case
func (c *Config) Grade(quality string) (string, bool) {
	grade, ok := c.Grades[strings.ToLower(strings.TrimSpace(quality))]
	return grade, ok
}

func getInt(settings map[string]string, key string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(settings[key]))
	return v, err == nil
}

func getBool(settings map[string]string, key string) (bool, bool) {
	v, err := strconv.ParseBool(strings.TrimSpace(settings[key]))
	return v, err == nil
}

func getStrings(settings map[string]string, key string) []string {
	text := settings[key]
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var values []string
	for _, s := range strings.Split(text, ",") {
		if strings.TrimSpace(s) != "" {
			values = append(values, s)
		}
	}
	return values
}

func getMap(settings map[string]string, key string) map[string]string {
	values := getStrings(settings, key)
	if values == nil {
		return nil
	}

	m := make(map[string]string, len(values))
	for _, s := range values {
		k, v, ok := strings.Cut(s, ":")
		if ok {
			m[k] = v
		}
	}
	return m
}
