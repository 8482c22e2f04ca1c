package service

import (
	"errors"
	"fmt"

	"github.com/emrgen/rard/internal/model"
)

var (
	// ErrDefiniteUnknownWork is returned when a link is marked definite on an Unknown Work.
	ErrDefiniteUnknownWork = errors.New("a link cannot be definite on the unknown work")
	// ErrDefiniteUnknownBook is returned when a link is marked definite on an Unknown Book.
	ErrDefiniteUnknownBook = errors.New("a link cannot be definite on the unknown book")
	// ErrDefiniteWithoutTarget is returned when a certainty flag is set on an empty level.
	ErrDefiniteWithoutTarget = errors.New("a link cannot be definite on a level it does not reference")
	// ErrBookWithoutWork is returned when a link references a book but no work.
	ErrBookWithoutWork = errors.New("a link with a book requires a work")
	// ErrBookNotInWork is returned when a link references a book of another work.
	ErrBookNotInWork = errors.New("the book does not belong to the work")
	// ErrWorkNotLinked is returned when a link references a work its antiquarian does not hold.
	ErrWorkNotLinked = errors.New("the work is not associated with the antiquarian")
	// ErrAntiquarianRequired is returned when a link would have neither antiquarian nor work,
	// or names a work that has antiquarians without naming one of them.
	ErrAntiquarianRequired = errors.New("an antiquarian is required")
	// ErrExclusiveNotAppositum is returned when exclusive is set on a fragment or testimonium link.
	ErrExclusiveNotAppositum = errors.New("only appositum links can be exclusive")
	// ErrUnknownWorkImmutable is returned when the Unknown Work is deleted, shared or detached.
	ErrUnknownWorkImmutable = errors.New("the unknown work is managed automatically")
	// ErrUnknownBookImmutable is returned when the Unknown Book is deleted or moved.
	ErrUnknownBookImmutable = errors.New("the unknown book is managed automatically")
	// ErrInvalidInput is returned when a request fails its field constraints.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a rejected mutation before anything was written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidationError reports whether err rejects the input of a mutation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, model.ErrInvalidKind) || errors.Is(err, model.ErrInvalidEvidenceRef)
}
