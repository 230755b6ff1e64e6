// Package filter provides the filter chain for position and photo submissions.
package filter

import (
	"context"
	"sort"
	"time"

	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/domain/geo"
)

// Kind is the type of a submission.
type Kind int

const (
	KindLocation Kind = iota // Periodic position report
	KindPhoto                // Photo proof with the position it was taken at
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindLocation:
		return "location"
	case KindPhoto:
		return "photo"
	default:
		return "unknown"
	}
}

// Submission represents a submission to be validated.
type Submission struct {
	Kind       Kind
	SessionID  string
	UserID     string
	Point      geo.Point
	ObservedAt time.Time // Device time, zero for photos
	ReceivedAt time.Time // Server time
}

// Env is the session state a submission is checked against.
type Env struct {
	Session     *game.Session
	Participant *game.Participant
	Zone        *game.Zone // Resolved zone, nil when no zone is enforced
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string   // Rejection code, e.g. "outside_zone"
	Flags    []string // Codes of accepted-but-suspicious findings
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Flag returns an accepted result carrying the given flag.
func Flag(code string) Result {
	return Result{Accepted: true, Flags: []string{code}}
}

// Flagged reports whether the result carries the given flag.
func (r Result) Flagged(code string) bool {
	for _, f := range r.Flags {
		if f == code {
			return true
		}
	}
	return false
}

// Filter is the interface for submission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given kind.
	AppliesTo(kind Kind) bool
	// Check performs the filter check.
	Check(ctx context.Context, sub Submission, env Env) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// Names returns the registered filter names in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
