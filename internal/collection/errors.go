package collection

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("collection not found")
	ErrNoteNotFound   = errors.New("note not found")
	ErrForbidden      = errors.New("collection belongs to another user")
	ErrNotPublished   = errors.New("collection is not published")
	ErrSaveInFlight   = errors.New("a save is already in progress for this collection")
	ErrNothingToSave  = errors.New("no unsaved changes")
	ErrInvalidReorder = errors.New("reorder must contain exactly the collection's items")

	ErrLimitExceeded   = errors.New("limit exceeded")
	ErrImportDuplicate = errors.New("collection already saved")
)

const (
	ReasonTooManyPassages = "too many passages"
	ReasonCollectionLimit = "collection limit reached"
	ReasonAlreadySaved    = "already saved"
)

// RejectedError is a user-facing refusal: an import or add that would break a
// limit, or an import of something the user already has.
type RejectedError struct {
	Reason string
	Kind   error
}

func (e *RejectedError) Error() string { return "rejected: " + e.Reason }

func (e *RejectedError) Unwrap() error { return e.Kind }

func rejected(kind error, reason string) error {
	return &RejectedError{Reason: reason, Kind: kind}
}

type SaveStage string

const (
	StagePersist SaveStage = "persist"
	StageRefetch SaveStage = "refetch"
)

// SaveError reports which store call failed during a save.
type SaveError struct {
	Stage SaveStage
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save collection (%s): %v", e.Stage, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
