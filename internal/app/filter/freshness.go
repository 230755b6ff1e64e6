package filter

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// FreshnessConfig represents the configuration for FreshnessFilter.
type FreshnessConfig struct {
	MaxAge  time.Duration `yaml:"max_age" mapstructure:"max_age" default:"2m" validate:"gt=0"`
	MaxSkew time.Duration `yaml:"max_skew" mapstructure:"max_skew" default:"30s" validate:"gte=0"`
}

// FreshnessFilter rejects position reports that are too old or too far in
// the future compared to the server clock.
type FreshnessFilter struct {
	config *FreshnessConfig
}

// NewFreshnessFilter creates a new freshness filter.
func NewFreshnessFilter() *FreshnessFilter {
	return &FreshnessFilter{}
}

func (f *FreshnessFilter) Name() string {
	return "freshness_filter"
}

func (f *FreshnessFilter) Description() string {
	return "Rejects location reports older than max_age or ahead of the server clock by more than max_skew"
}

func (f *FreshnessFilter) ReturnCodes() []string {
	return []string{"stale_location", "future_location"}
}

func (f *FreshnessFilter) ValidateConfig(settings map[string]any) error {
	var config FreshnessConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("freshness filter config: %+v", config)
	return nil
}

func (f *FreshnessFilter) AppliesTo(kind Kind) bool {
	// Photos carry no device timestamp
	return kind == KindLocation
}

func (f *FreshnessFilter) Check(ctx context.Context, sub Submission, env Env) Result {
	if f.config == nil || sub.ObservedAt.IsZero() {
		return Accept()
	}

	age := sub.ReceivedAt.Sub(sub.ObservedAt)
	if age > f.config.MaxAge {
		return Reject("stale_location")
	}
	if -age > f.config.MaxSkew {
		return Reject("future_location")
	}
	return Accept()
}

func init() {
	Register("freshness_filter", func() Filter {
		return &FreshnessFilter{}
	})
}
