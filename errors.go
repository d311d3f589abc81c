package fitting

import (
	"errors"
	"fmt"
)

var (
	// ErrGone indicates the addressed fitting control no longer exists.
	// Callers must treat the stage as finished or failed and unwind.
	ErrGone = errors.New("fitting control gone")

	// ErrBuilderExited indicates the pipeline builder terminated
	// abnormally; the control terminates with this reason.
	ErrBuilderExited = errors.New("builder exited")

	// ErrDrainTimeout indicates a control gave up waiting for its workers
	// to report done after end-of-inputs.
	ErrDrainTimeout = errors.New("drain timeout waiting for workers")

	// ErrModuleNotFound indicates a module ID has no registered
	// constructor.
	ErrModuleNotFound = errors.New("module not found")
)

// BadSpecError reports a fitting spec that failed validation. Validation
// failures are never retried; they abort pipeline construction.
type BadSpecError struct {
	// Name is the name of the offending spec (may be empty if the name
	// itself is invalid).
	Name string

	// Reason is a printable description of the failure.
	Reason string
}

func (e *BadSpecError) Error() string {
	return fmt.Sprintf("bad fitting spec %q: %s", e.Name, e.Reason)
}

// InitError classifies a failure of a module's Init callback. The worker
// terminates with this reason; the hosting vnode decides whether to retry
// on the next input.
type InitError struct {
	// Kind distinguishes a returned error from a recovered panic.
	Kind InitFailureKind

	// Err is the underlying failure.
	Err error
}

// InitFailureKind classifies how a module's Init failed.
type InitFailureKind string

const (
	// InitFailureError means Init returned a non-nil error.
	InitFailureError InitFailureKind = "error"

	// InitFailurePanic means Init panicked.
	InitFailurePanic InitFailureKind = "panic"
)

func (e *InitError) Error() string {
	return fmt.Sprintf("module init failed (%s): %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// undefinedArchive is the type of ArchiveUndefined.
type undefinedArchive struct{}

func (undefinedArchive) String() string { return "undefined" }

// ArchiveUndefined is the distinguished archive value a worker reports
// when its module does not implement Archiver.
var ArchiveUndefined = undefinedArchive{}
