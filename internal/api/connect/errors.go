package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/domain/game"
)

// toConnectError maps a categorized error to a Connect error. Errors without
// a category are logged and reported as internal.
func toConnectError(procedure string, err error) error {
	if err == nil {
		return nil
	}
	code := codeOf(err)
	if code == connect.CodeInternal {
		zlog.Error().Err(err).Msgf("rpc failed: %s", procedure)
	} else {
		zlog.Debug().Msgf("rpc refused: %s code=%s: %v", procedure, code, err)
	}
	return connect.NewError(code, err)
}

func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, game.ErrValidation):
		return connect.CodeInvalidArgument
	case errors.Is(err, game.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, game.ErrCapacity):
		return connect.CodeResourceExhausted
	case errors.Is(err, game.ErrConcurrency):
		return connect.CodeAborted
	case errors.Is(err, game.ErrAlreadyAssigned):
		return connect.CodeAlreadyExists
	case errors.Is(err, game.ErrRejected):
		return connect.CodePermissionDenied
	case errors.Is(err, game.ErrState),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrAutomationDisabled),
		errors.Is(err, game.ErrInsufficientParticipants):
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}
