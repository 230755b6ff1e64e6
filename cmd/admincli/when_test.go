package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartTime(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: "2026-06-01T19:00:00Z", want: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)},
		{name: "relative hours", input: "in 2 hours", want: now.Add(2 * time.Hour)},
		{name: "past rfc3339", input: "2026-05-01T19:00:00Z", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
		{name: "gibberish", input: "whenever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStartTime(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}
