package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/dive/internal/shared"
)

const (
	msgNoArtists   = "No artists found with current configuration! Try to adjust some values"
	msgNoTracks    = "No new tracks found with current configuration! Try to adjust some values"
	msgNoRelated   = "No related artists outside your library! Try a lower threshold or more related artists"
	msgAuthExpired = "Authentication expired, please relogin and try again"
	msgCanceled    = "Run canceled"
	msgUnknown     = "Something went wrong, please try again"
)

// ErrRunCanceled marks a run stopped by its context.
var ErrRunCanceled = errors.New("run canceled")

// StageError is a stage that finished without producing anything to continue with.
type StageError struct {
	Stage   Stage
	Message string
}

func (e *StageError) Error() string { return e.Message }

func (e *StageError) Unwrap() error { return shared.ErrStageEmpty }

// ErrorKind groups run failures by what the user can do about them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransientNetwork
	KindAuthExpired
	KindStageEmpty
	KindPlaylistCreate
	KindPartialWrite
	KindInvalidConfig
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindAuthExpired:
		return "auth_expired"
	case KindStageEmpty:
		return "stage_empty"
	case KindPlaylistCreate:
		return "playlist_create"
	case KindPartialWrite:
		return "partial_write"
	case KindInvalidConfig:
		return "invalid_config"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps a run error onto an [ErrorKind].
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrRunCanceled), errors.Is(err, context.Canceled):
		return KindCanceled
	case shared.IsAuthError(err):
		return KindAuthExpired
	case errors.Is(err, shared.ErrStageEmpty):
		return KindStageEmpty
	case errors.Is(err, shared.ErrPlaylistCreate):
		return KindPlaylistCreate
	case errors.Is(err, shared.ErrPartialWrite):
		return KindPartialWrite
	case errors.Is(err, shared.ErrInvalidConfig):
		return KindInvalidConfig
	case errors.Is(err, shared.ErrRetriesExhausted),
		errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransientNetwork
	default:
		return KindUnknown
	}
}

// UserMessage is the one-line text shown to the user for a run error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		stageErr  *StageError
		createErr *CreateError
	)
	switch Classify(err) {
	case KindAuthExpired:
		return msgAuthExpired
	case KindStageEmpty:
		if errors.As(err, &stageErr) {
			return stageErr.Message
		}
		return msgNoTracks
	case KindCanceled:
		return msgCanceled
	case KindPlaylistCreate:
		if errors.As(err, &createErr) {
			return createErr.Error()
		}
		return err.Error()
	case KindPartialWrite, KindInvalidConfig:
		return err.Error()
	case KindTransientNetwork:
		return "Spotify is not responding right now, please try again later"
	default:
		return fmt.Sprintf("%s (%v)", msgUnknown, err)
	}
}
