package main

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// parseStartTime accepts RFC3339 or a natural language phrase relative to now.
// The result must lie in the future.
func parseStartTime(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, errors.New("start time is empty")
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return checkFuture(t, now)
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(strings.ToLower(input), now)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse start time %q", input)
	}
	if r == nil {
		return time.Time{}, errors.Newf("could not recognize start time %q", input)
	}
	return checkFuture(r.Time.Truncate(time.Minute), now)
}

func checkFuture(t, now time.Time) (time.Time, error) {
	if !t.After(now) {
		return time.Time{}, errors.Newf("start time must be in the future (parsed: %s)", t.Format(time.RFC3339))
	}
	return t, nil
}
