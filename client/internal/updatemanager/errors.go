package updatemanager

import (
	"errors"
	"fmt"
)

const (
	// VersionRead indicates that the version metadata of the executable is missing or unreadable
	VersionRead Type = 1

	// Network indicates a manifest or payload transfer failure
	Network Type = 2

	// Store indicates that the manifest has no entry for the product or cannot be parsed
	Store Type = 3

	// Launch indicates that a downloaded payload could not be started
	Launch Type = 4

	// Publish indicates that a manifest could not be written or uploaded
	Publish Type = 5
)

// Type is a type of the Error
type Type int32

func (t Type) String() string {
	switch t {
	case VersionRead:
		return "version read"
	case Network:
		return "network"
	case Store:
		return "store"
	case Launch:
		return "launch"
	case Publish:
		return "publish"
	default:
		return "unknown"
	}
}

// ErrCheckInProgress is returned when a check is started while another one is still running
var ErrCheckInProgress = errors.New("update check already in progress")

// Error is a failed step of an update operation
type Error struct {
	ErrorType Type
	Op        string
	Err       error
}

// Type returns the Type of the error
func (e *Error) Type() Type {
	return e.ErrorType
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(errorType Type, op string, err error) *Error {
	return &Error{ErrorType: errorType, Op: op, Err: err}
}

// FromError returns Error, true if the provided error is of type of Error. nil, false otherwise
func FromError(err error) (e *Error, ok bool) {
	if err == nil {
		return nil, false
	}
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
