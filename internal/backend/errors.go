package backend

// invalidRequestError signals a request that failed precondition checks, for
// 400 mapping.
type invalidRequestError struct{ reason string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.reason }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(reason string) error { return invalidRequestError{reason: reason} }

// IsInvalidRequest reports whether err indicates a rejected request payload.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// tooBusyError signals the in-flight gate rejected a submission, for 429
// mapping.
type tooBusyError struct{}

func (e tooBusyError) Error() string { return "too busy: max in-flight requests reached" }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// generationError signals the executor reported an error mid-stream. The
// stream is terminated; tokens already emitted remain valid.
type generationError struct{ msg string }

func (e generationError) Error() string { return "generation failed: " + e.msg }

// IsGenerationError reports whether err is a mid-stream executor error.
func IsGenerationError(err error) bool {
	_, ok := err.(generationError)
	return ok
}

// dependencyUnavailableError signals the executor runtime is missing or not
// ready, so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed
// runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
