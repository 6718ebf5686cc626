package persona

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup miss. Recoverable by the caller; the registry
// itself stays intact.
var ErrNotFound = errors.New("persona not found")

// MalformedRecordError reports a document that could not be loaded: an
// unparseable metadata block or a missing required field.
type MalformedRecordError struct {
	Source string // file path or key the document came from
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persona: malformed record %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("persona: malformed record %s: %s", e.Source, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// DuplicateIDError reports an id collision while building a registry snapshot.
type DuplicateIDError struct {
	ID     string
	Source string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("persona: duplicate id %q (from %s)", e.ID, e.Source)
}
