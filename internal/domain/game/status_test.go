package game

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusRecruitment,
	StatusHiding,
	StatusSearching,
	StatusFinished,
	StatusCancelled,
}

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusRecruitment: {StatusHiding, StatusCancelled},
		StatusHiding:      {StatusSearching, StatusFinished, StatusCancelled},
		StatusSearching:   {StatusFinished, StatusCancelled},
		StatusFinished:    {},
		StatusCancelled:   {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusRecruitment.IsTerminal())
	assert.False(t, StatusHiding.IsTerminal())
	assert.False(t, StatusSearching.IsTerminal())
	assert.True(t, StatusFinished.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("paused")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "", want: RoleNone},
		{in: "Driver", want: RoleDriver},
		{in: " seeker ", want: RoleSeeker},
		{in: "observer", want: RoleObserver},
		{in: "captain", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
