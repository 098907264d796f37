package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Failure classifications recorded on the session when a stage fails.
const (
	ClassTransient    = "transient_external_error"
	ClassPermanent    = "permanent_external_error"
	ClassPrecondition = "precondition_error"
	ClassValidation   = "validation_error"
	ClassInternal     = "internal_error"
)

// TransientExternalError reports a retryable collaborator failure: timeout,
// rate limit, or a server-side error. The coordinator retries it within the
// configured budget before escalating.
type TransientExternalError struct {
	Op  string
	Err error
}

func (e *TransientExternalError) Error() string {
	return fmt.Sprintf("%s: transient external error: %v", e.Op, e.Err)
}

func (e *TransientExternalError) Unwrap() error { return e.Err }

// PermanentExternalError reports an unrecoverable collaborator failure, e.g.
// an unsupported audio format. The session fails immediately without retry.
type PermanentExternalError struct {
	Op  string
	Err error
}

func (e *PermanentExternalError) Error() string {
	return fmt.Sprintf("%s: permanent external error: %v", e.Op, e.Err)
}

func (e *PermanentExternalError) Unwrap() error { return e.Err }

// IsTransient reports whether an error should be retried. A context deadline
// on the bounded per-call timeout counts as transient; it is never treated as
// silent success.
func IsTransient(err error) bool {
	var transient *TransientExternalError
	if errors.As(err, &transient) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether an error must fail the session without retry.
func IsPermanent(err error) bool {
	var permanent *PermanentExternalError
	return errors.As(err, &permanent)
}

// StatusError classifies a non-2xx collaborator response. Timeouts, rate
// limits, and server-side errors are transient; any other client error is
// permanent.
func StatusError(op string, status int, body []byte) error {
	err := fmt.Errorf("unexpected status %d: %s", status, string(body))
	if status == 408 || status == 429 || status >= 500 {
		return &TransientExternalError{Op: op, Err: err}
	}
	return &PermanentExternalError{Op: op, Err: err}
}

// TransportError classifies a failed round trip. Network-level failures are
// transient: the collaborator may simply be restarting.
func TransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransientExternalError{Op: op, Err: err}
}

// Classify maps an error onto a failure classification for the session row.
func Classify(err error) string {
	switch {
	case IsPermanent(err):
		return ClassPermanent
	case IsTransient(err):
		return ClassTransient
	default:
		return ClassInternal
	}
}
