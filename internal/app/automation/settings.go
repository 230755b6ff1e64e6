// Package automation provides the automation settings and the policy that
// gates unattended phase transitions.
package automation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
)

// Settings is a snapshot of the per-deployment automation settings.
type Settings struct {
	AutoStartGame          bool          `yaml:"auto_start_game" mapstructure:"autoStartGame" default:"true"`
	AutoStartHiding        bool          `yaml:"auto_start_hiding" mapstructure:"autoStartHiding" default:"true"`
	AutoStartSearching     bool          `yaml:"auto_start_searching" mapstructure:"autoStartSearching" default:"true"`
	AutoEndGame            bool          `yaml:"auto_end_game" mapstructure:"autoEndGame" default:"true"`
	AutoAssignRoles        bool          `yaml:"auto_assign_roles" mapstructure:"autoAssignRoles" default:"true"`
	ManualControlMode      bool          `yaml:"manual_control_mode" mapstructure:"manualControlMode"`
	HidingDuration         time.Duration `yaml:"hiding_duration" mapstructure:"hidingDuration" default:"15m" validate:"gt=0"`
	SearchingDuration      time.Duration `yaml:"searching_duration" mapstructure:"searchingDuration" default:"60m" validate:"gt=0"`
	MinParticipantsToStart int           `yaml:"min_participants_to_start" mapstructure:"minParticipantsToStart" default:"2" validate:"gte=2"`
}

// Validate validates the settings.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return errors.Wrap(err, "settings validation failed")
	}
	return nil
}

// SafeDefaults returns the settings used when the settings store cannot be
// read. Every automatic path is off, so the deployment degrades to manual-only
// control instead of failing.
func SafeDefaults() Settings {
	return Settings{
		HidingDuration:         15 * time.Minute,
		SearchingDuration:      60 * time.Minute,
		MinParticipantsToStart: 2,
	}
}

// Store reads and writes persisted settings.
type Store interface {
	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// Provider fetches a fresh settings snapshot for every decision.
type Provider struct {
	store    Store
	fallback Settings
}

// NewProvider creates a provider backed by store.
func NewProvider(store Store) *Provider {
	return &Provider{
		store:    store,
		fallback: SafeDefaults(),
	}
}

// Snapshot returns the current settings. A store failure is logged and the
// safe defaults are returned instead.
func (p *Provider) Snapshot(ctx context.Context) Settings {
	s, err := p.store.GetSettings(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("settings unavailable, falling back to manual-only defaults")
		return p.fallback
	}
	return s
}

// Update applies a partial update and persists the result.
func (p *Provider) Update(ctx context.Context, raw map[string]any) (Settings, error) {
	patch, err := DecodePatch(raw)
	if err != nil {
		return Settings{}, err
	}
	current, err := p.store.GetSettings(ctx)
	if err != nil {
		return Settings{}, errors.Wrap(err, "failed to read settings")
	}
	next, err := patch.Apply(current)
	if err != nil {
		return Settings{}, err
	}
	if err := p.store.SaveSettings(ctx, next); err != nil {
		return Settings{}, errors.Wrap(err, "failed to save settings")
	}
	zlog.Info().Msgf("automation settings updated: %+v", next)
	return next, nil
}
