// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/domain/game"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	Admin        AdminConfig             `yaml:"admin"`
	Store        StoreConfig             `yaml:"store"`
	Session      SessionConfig           `yaml:"session"`
	Automation   automation.Settings     `yaml:"automation"`
	Zones        []ZoneConfig            `yaml:"zones" validate:"dive"`
	Notification NotificationConfig      `yaml:"notification"`
	Filters      map[string]FilterConfig `yaml:"filters"`
	Messages     MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// StoreConfig represents persistence configuration.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"memory" validate:"oneof=memory sqlite"`
	Path   string `yaml:"path" default:"hideseek.db"`
}

// SessionConfig represents session engine configuration.
type SessionConfig struct {
	LockTimeout      time.Duration `yaml:"lock_timeout" default:"5s" validate:"gt=0"`
	SchedulerWorkers int           `yaml:"scheduler_workers" default:"4" validate:"gte=1,lte=256"`
	DefaultRadius    float64       `yaml:"default_nearby_radius" default:"500" validate:"gt=0"`
}

// ZoneConfig represents a zone seeded at startup.
type ZoneConfig struct {
	ID           string  `yaml:"id" validate:"required"`
	District     string  `yaml:"district" validate:"required"`
	Name         string  `yaml:"name"`
	Lat          float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon          float64 `yaml:"lon" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `yaml:"radius_meters" validate:"gt=0"`
	Default      bool    `yaml:"default"`
	Disabled     bool    `yaml:"disabled"`
}

// Zone converts the entry to a domain zone.
func (z ZoneConfig) Zone() game.Zone {
	return game.Zone{
		ID:           z.ID,
		District:     z.District,
		Name:         z.Name,
		Lat:          z.Lat,
		Lon:          z.Lon,
		RadiusMeters: z.RadiusMeters,
		IsDefault:    z.Default,
		Active:       !z.Disabled,
	}
}

// NotificationConfig represents notification gateway configuration.
type NotificationConfig struct {
	QueueSize   int           `yaml:"queue_size" default:"256" validate:"gte=1"`
	RatePerSec  float64       `yaml:"rate_per_sec" default:"50" validate:"gte=0"`
	Burst       int           `yaml:"burst" default:"10" validate:"gte=1"`
	SendTimeout time.Duration `yaml:"send_timeout" default:"500ms" validate:"gt=0"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	HidingStarted    string `yaml:"hiding_started" default:"The game has started. Drivers, hide now!"`
	SearchingStarted string `yaml:"searching_started" default:"Hiding time is over. Seekers, start searching!"`
	GameFinished     string `yaml:"game_finished" default:"The game is over. Thanks for playing!"`
	GameCancelled    string `yaml:"game_cancelled" default:"The game has been cancelled."`
	StartFailed      string `yaml:"start_failed" default:"The game could not start: not enough participants."`
	RoleDriver       string `yaml:"role_driver" default:"You are a driver. Hide inside the zone."`
	RoleSeeker       string `yaml:"role_seeker" default:"You are a seeker. Find the drivers."`
	RolesReset       string `yaml:"roles_reset" default:"Roles have been reset."`
	OutsideZone      string `yaml:"outside_zone" default:"You are outside the game zone. Please return."`
	PhotoSubmitted   string `yaml:"photo_submitted" default:"A photo is waiting for review."`
	PhotoApproved    string `yaml:"photo_approved" default:"Your photo has been approved."`
	PhotoRejected    string `yaml:"photo_rejected" default:"Your photo has been rejected."`
	Subscribed       string `yaml:"subscribed" default:"You will be notified about your games."`
	DefaultMessage   string `yaml:"default_message" default:"The game has been updated."`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML.
func Parse(data []byte) (*Config, error) {
	// Defaults go first so explicit false and zero values in the file survive
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return &cfg
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("HIDESEEK_DB_PATH"); v != "" {
		c.Store.Path = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "hiding_started":
		return c.Messages.HidingStarted
	case "searching_started":
		return c.Messages.SearchingStarted
	case "game_finished":
		return c.Messages.GameFinished
	case "game_cancelled":
		return c.Messages.GameCancelled
	case "start_failed":
		return c.Messages.StartFailed
	case "role_driver":
		return c.Messages.RoleDriver
	case "role_seeker":
		return c.Messages.RoleSeeker
	case "roles_reset":
		return c.Messages.RolesReset
	case "outside_zone":
		return c.Messages.OutsideZone
	case "photo_submitted":
		return c.Messages.PhotoSubmitted
	case "photo_approved":
		return c.Messages.PhotoApproved
	case "photo_rejected":
		return c.Messages.PhotoRejected
	case "subscribed":
		return c.Messages.Subscribed
	default:
		return c.Messages.DefaultMessage
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.Automation.Validate(); err != nil {
		return err
	}

	if err := c.validateZones(); err != nil {
		return err
	}

	return nil
}

// validateZones checks that zone IDs are unique and each district has at
// most one default zone.
func (c *Config) validateZones() error {
	ids := make(map[string]bool, len(c.Zones))
	defaultsByDistrict := make(map[string]string)
	for _, z := range c.Zones {
		if ids[z.ID] {
			return errors.Newf("duplicate zone id: %s", z.ID)
		}
		ids[z.ID] = true

		if !z.Default {
			continue
		}
		if z.Disabled {
			return errors.Newf("default zone %s cannot be disabled", z.ID)
		}
		if other, ok := defaultsByDistrict[z.District]; ok {
			return errors.Newf("district %s has two default zones: %s and %s", z.District, other, z.ID)
		}
		defaultsByDistrict[z.District] = z.ID
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// EnabledFilters returns the settings of every enabled filter keyed by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if f.Enabled {
			out[name] = f.Settings
		}
	}
	return out
}

// SeedZones returns the configured zones as domain zones.
func (c *Config) SeedZones() []game.Zone {
	zones := make([]game.Zone, 0, len(c.Zones))
	for _, z := range c.Zones {
		zones = append(zones, z.Zone())
	}
	return zones
}
