package session

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindPermission: access denied or capture unsupported. Retryable.
	KindPermission Kind = "permission"
	// KindCaptureUnavailable: permission granted but no usable stream.
	KindCaptureUnavailable Kind = "capture_unavailable"
	// KindRecognitionTransient: recognizer hiccup, recovered internally.
	KindRecognitionTransient Kind = "recognition_transient"
	// KindModelLoad: neither model source could be loaded.
	KindModelLoad Kind = "model_load"
	// KindReduction: final scoring failed; resources were still released.
	KindReduction Kind = "reduction"
)

// Error is the typed error returned across the engine boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
