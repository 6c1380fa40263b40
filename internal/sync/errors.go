package sync

import (
	"errors"
	"fmt"

	"github.com/nhle/efficio/internal/store"
)

// ErrNotFound is returned when an operation references a local id that is
// not in the store.
var ErrNotFound = store.ErrNotFound

// ErrOffline marks a remote step skipped because connectivity was absent.
// It is reported in results, never returned as an operation failure.
var ErrOffline = errors.New("remote unavailable")

// ValidationError reports bad input. It is returned before any state is
// written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
