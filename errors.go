package depcache

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid or missing configuration. It is surfaced
// immediately at construction time and never silenced.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("depcache: config: %s: %v", e.Reason, e.Err)
	}
	return "depcache: config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BackendError wraps a store failure: the backend was unreachable or
// rejected a command. Propagated by default; WrapConfig's
// SilentBackendErrors downgrades it to a logged warning on the wrapper
// path.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("depcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// SerializationError marks a codec failure. It is handled exactly like
// a BackendError.
var SerializationError = errors.New("depcache: serialization failed")

func backendErr(op, key string, err error) error {
	return &BackendError{Op: op, Key: key, Err: err}
}

func serializationErr(op, key string, err error) error {
	return &BackendError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", SerializationError, err)}
}

// IsBackendError reports whether err originated from the store or the
// codec rather than from the wrapped function.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
