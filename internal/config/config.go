package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	// Embedded zone database; slim containers often lack /usr/share/zoneinfo.
	_ "time/tzdata"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"islandbot/internal/calendar"
	"islandbot/internal/schedule"
)

// CalendarConfig describes the Lost Ark calendar API.
type CalendarConfig struct {
	// Endpoint is the calendar URL.
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,url"`
	// Token is the OpenAPI JWT. Usually supplied via LOSTARK_JWT.
	Token string `yaml:"token" json:"-" validate:"required"`
	// Timeout bounds a single request.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	// MinInterval is the minimum spacing between two API calls (0 = none).
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval" validate:"gte=0"`
}

// DiscordConfig holds the delivery channel. Only the run command needs it.
type DiscordConfig struct {
	Token     string `yaml:"token" json:"-" validate:"required"`
	ChannelID string `yaml:"channel_id" json:"channel_id" validate:"required,numeric"`
	// GuildID limits slash command registration to one guild (faster to
	// propagate). Empty registers commands globally.
	GuildID string `yaml:"guild_id" json:"guild_id" validate:"omitempty,numeric"`
}

// ScheduleConfig lists the daily dispatch times.
type ScheduleConfig struct {
	// Times are "HH:MM" labels in Timezone.
	Times []string `yaml:"times" json:"times" validate:"required,min=1,dive,slot"`
	// AnnounceOnStart posts today's summary once shortly after the bot
	// becomes ready. The post does not count against any slot.
	AnnounceOnStart bool `yaml:"announce_on_start" json:"announce_on_start"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	// File, if set, receives JSON logs in addition to stderr.
	File string `yaml:"file" json:"file"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for /health and the API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone all dates and slots are evaluated in.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required,timezone"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Discord  DiscordConfig  `yaml:"discord" json:"discord" validate:"-"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Log      LogConfig      `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "0.0.0.0:10000",
		Timezone: "Asia/Seoul",
		Calendar: CalendarConfig{
			Endpoint:    calendar.DefaultEndpoint,
			Timeout:     20 * time.Second,
			MinInterval: 30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Times: []string{"06:01"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Normalize fills in missing/zero values from DefaultConfig so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() error {
	if err := mergo.Merge(c, DefaultConfig()); err != nil {
		return fmt.Errorf("apply config defaults: %w", err)
	}
	return nil
}

// Environment variables that override file values. Secrets are normally
// supplied this way (or through a .env file) instead of the YAML file.
const (
	EnvDiscordToken   = "DISCORD_TOKEN"
	EnvDiscordChannel = "DISCORD_CHANNEL_ID"
	EnvDiscordGuild   = "DISCORD_GUILD_ID"
	EnvLostArkJWT     = "LOSTARK_JWT"
	EnvPort           = "PORT"
	EnvTimezone       = "ISLANDBOT_TIMEZONE"
)

// ApplyEnv overrides fields from environment variables found by lookup
// (os.LookupEnv in production). Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvDiscordToken, &c.Discord.Token)
	set(EnvDiscordChannel, &c.Discord.ChannelID)
	set(EnvDiscordGuild, &c.Discord.GuildID)
	set(EnvLostArkJWT, &c.Calendar.Token)
	set(EnvTimezone, &c.Timezone)

	if port, ok := lookup(EnvPort); ok && port != "" {
		c.Listen = "0.0.0.0:" + port
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slot", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseSlot(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks everything needed to query the calendar.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateDiscord checks the Discord section, required by the bot.
func (c *Config) ValidateDiscord() error {
	if err := newValidator().Struct(c.Discord); err != nil {
		return fmt.Errorf("invalid discord config: %w", err)
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Slots parses the configured dispatch times.
func (c *Config) Slots() ([]schedule.Slot, error) {
	return schedule.ParseSlots(c.Schedule.Times)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 permissions and returned.
//   - Otherwise the YAML is decoded and missing values are defaulted.
//
// Environment overrides and validation are applied by the caller.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".islandbot-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
