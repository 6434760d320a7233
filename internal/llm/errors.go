package llm

import "errors"

// ErrSinkClosed is wrapped by sink errors when the consumer went away.
// Generators should stop and return it; it does not count as a model failure.
var ErrSinkClosed = errors.New("sink closed")

// ErrUnavailable is returned while the circuit breaker rejects work.
var ErrUnavailable = errors.New("generator unavailable")

// dependencyUnavailableError signals a missing runtime dependency (e.g. the
// binary was built without llama support).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}
