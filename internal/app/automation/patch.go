package automation

import (
	"math"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/hideseek/internal/domain/game"
)

// Patch is a partial settings update. Nil fields are left unchanged.
type Patch struct {
	AutoStartGame          *bool          `mapstructure:"autoStartGame"`
	AutoStartHiding        *bool          `mapstructure:"autoStartHiding"`
	AutoStartSearching     *bool          `mapstructure:"autoStartSearching"`
	AutoEndGame            *bool          `mapstructure:"autoEndGame"`
	AutoAssignRoles        *bool          `mapstructure:"autoAssignRoles"`
	ManualControlMode      *bool          `mapstructure:"manualControlMode"`
	HidingDuration         *time.Duration `mapstructure:"hidingDuration" validate:"omitnil,gt=0"`
	SearchingDuration      *time.Duration `mapstructure:"searchingDuration" validate:"omitnil,gt=0"`
	MinParticipantsToStart *int           `mapstructure:"minParticipantsToStart" validate:"omitnil,gte=2"`
}

// DecodePatch decodes a raw key/value update. Unknown keys and values of the
// wrong type are rejected with game.ErrValidation.
func DecodePatch(raw map[string]any) (Patch, error) {
	var patch Patch
	if len(raw) == 0 {
		return patch, game.Validationf("settings update is empty")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &patch,
		TagName:     "mapstructure",
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			strictNumberHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return patch, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return patch, errors.Mark(errors.Wrap(err, "invalid settings update"), game.ErrValidation)
	}

	if err := validator.New().Struct(patch); err != nil {
		return patch, errors.Mark(errors.Wrap(err, "invalid settings update"), game.ErrValidation)
	}
	return patch, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// strictNumberHook rejects bare numbers for durations and fractional numbers
// for integer fields, both of which mapstructure would otherwise coerce.
func strictNumberHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to == durationType {
		if from.Kind() != reflect.String {
			return nil, errors.Newf("duration must be a string such as \"15m\", got %v", data)
		}
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch from.Kind() {
		case reflect.Float32, reflect.Float64:
			f := reflect.ValueOf(data).Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, errors.Newf("expected a whole number, got %v", data)
			}
		case reflect.String, reflect.Bool:
			return nil, errors.Newf("expected a number, got %v", data)
		}
	}
	return data, nil
}

// Apply returns base with the supplied fields replaced.
func (p Patch) Apply(base Settings) (Settings, error) {
	next := base
	setBool(&next.AutoStartGame, p.AutoStartGame)
	setBool(&next.AutoStartHiding, p.AutoStartHiding)
	setBool(&next.AutoStartSearching, p.AutoStartSearching)
	setBool(&next.AutoEndGame, p.AutoEndGame)
	setBool(&next.AutoAssignRoles, p.AutoAssignRoles)
	setBool(&next.ManualControlMode, p.ManualControlMode)
	if p.HidingDuration != nil {
		next.HidingDuration = *p.HidingDuration
	}
	if p.SearchingDuration != nil {
		next.SearchingDuration = *p.SearchingDuration
	}
	if p.MinParticipantsToStart != nil {
		next.MinParticipantsToStart = *p.MinParticipantsToStart
	}
	if err := next.Validate(); err != nil {
		return base, errors.Mark(err, game.ErrValidation)
	}
	return next, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
