package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/domain/geo"
)

// Zone filter modes.
const (
	ZoneModeReject = "reject"
	ZoneModeFlag   = "flag"
)

// CodeOutsideZone is returned or flagged for positions outside the zone.
const CodeOutsideZone = "outside_zone"

// ZoneConfig represents the configuration for ZoneFilter.
type ZoneConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode" default:"flag" validate:"oneof=reject flag"`
}

// ZoneFilter checks positions against the resolved zone of the session.
// Photos are always flagged rather than rejected so a moderator sees them.
type ZoneFilter struct {
	config *ZoneConfig
}

// NewZoneFilter creates a new zone filter.
func NewZoneFilter(mode string) *ZoneFilter {
	return &ZoneFilter{config: &ZoneConfig{Mode: mode}}
}

func (f *ZoneFilter) Name() string {
	return "zone_filter"
}

func (f *ZoneFilter) Description() string {
	return "Rejects or flags positions outside the session zone"
}

func (f *ZoneFilter) ReturnCodes() []string {
	return []string{CodeOutsideZone}
}

func (f *ZoneFilter) ValidateConfig(settings map[string]any) error {
	var config ZoneConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("zone filter config: %+v", config)
	return nil
}

func (f *ZoneFilter) AppliesTo(kind Kind) bool {
	return true
}

func (f *ZoneFilter) Check(ctx context.Context, sub Submission, env Env) Result {
	if geo.Contains(env.Zone, sub.Point) {
		return Accept()
	}
	if sub.Kind == KindLocation && f.config != nil && f.config.Mode == ZoneModeReject {
		return Reject(CodeOutsideZone)
	}
	return Flag(CodeOutsideZone)
}

func init() {
	Register("zone_filter", func() Filter {
		return &ZoneFilter{}
	})
}
