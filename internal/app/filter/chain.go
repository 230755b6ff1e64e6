package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Order is the order in which enabled filters run. Cheap state checks come
// before geometry.
var Order = []string{"phase_filter", "freshness_filter", "zone_filter"}

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Build creates a chain from the enabled filters and their settings.
// Filters run in Order; unknown names fail.
func Build(enabled map[string]map[string]any) (*Chain, error) {
	for name := range enabled {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}

	c := NewChain()
	for _, name := range Order {
		settings, ok := enabled[name]
		if !ok {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		c.Add(f)
		zlog.Info().Msgf("submission filter enabled: %s", name)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the submission; flags raised by
// accepting filters are collected.
func (c *Chain) Execute(ctx context.Context, sub Submission, env Env) Result {
	out := Accept()
	for _, f := range c.filters {
		if !f.AppliesTo(sub.Kind) {
			continue
		}

		result := f.Check(ctx, sub, env)
		if !result.Accepted {
			return result
		}
		out.Flags = append(out.Flags, result.Flags...)
	}
	return out
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
