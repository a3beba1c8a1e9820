package registry

// Error types carried across the dispatch boundary. Backend-reported
// failures wrap the underlying cause and name the backend; structural
// failures (uninitialized registry, unknown model) carry no cause. The HTTP
// layer maps these to status codes via the Is* predicates.

type notInitializedError struct{}

func (notInitializedError) Error() string { return "registry not initialized" }

// ErrNotInitialized reports use of the registry before Initialize.
func ErrNotInitialized() error { return notInitializedError{} }

// IsNotInitialized reports whether err indicates an uninitialized registry.
func IsNotInitialized(err error) bool {
	_, ok := err.(notInitializedError)
	return ok
}

type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

// ErrModelNotFound returns an error for an unknown logical model name.
func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether the error indicates a missing model name.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

type initializationError struct{ msg string }

func (e initializationError) Error() string { return "registry init: " + e.msg }

// ErrInitialization reports structurally invalid backend configuration.
func ErrInitialization(msg string) error { return initializationError{msg: msg} }

// IsInitialization reports whether err is a registry initialization failure.
func IsInitialization(err error) bool {
	_, ok := err.(initializationError)
	return ok
}

// backendError is the shared shape of backend-reported failures: the failing
// capability, the backend name, and the underlying cause.
type backendError struct {
	op    string
	model string
	cause error
}

func (e backendError) Error() string { return e.op + " failed: " + e.model + ": " + e.cause.Error() }
func (e backendError) Unwrap() error { return e.cause }

type loadError struct{ backendError }
type generateError struct{ backendError }
type trainError struct{ backendError }
type evalError struct{ backendError }
type persistError struct{ backendError }

// ErrLoadFailure wraps a backend load failure.
func ErrLoadFailure(model string, cause error) error {
	return loadError{backendError{op: "load", model: model, cause: cause}}
}

// IsLoadFailure reports whether err is a backend load failure.
func IsLoadFailure(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// ErrGenerationFailure wraps a backend generation failure.
func ErrGenerationFailure(model string, cause error) error {
	return generateError{backendError{op: "generation", model: model, cause: cause}}
}

// IsGenerationFailure reports whether err is a backend generation failure.
func IsGenerationFailure(err error) bool {
	_, ok := err.(generateError)
	return ok
}

// ErrTrainingFailure wraps a backend training failure.
func ErrTrainingFailure(model string, cause error) error {
	return trainError{backendError{op: "training", model: model, cause: cause}}
}

// IsTrainingFailure reports whether err is a backend training failure.
func IsTrainingFailure(err error) bool {
	_, ok := err.(trainError)
	return ok
}

// ErrEvaluationFailure wraps a backend evaluation failure.
func ErrEvaluationFailure(model string, cause error) error {
	return evalError{backendError{op: "evaluation", model: model, cause: cause}}
}

// IsEvaluationFailure reports whether err is a backend evaluation failure.
func IsEvaluationFailure(err error) bool {
	_, ok := err.(evalError)
	return ok
}

// ErrPersistenceFailure wraps a checkpoint I/O failure.
func ErrPersistenceFailure(model string, cause error) error {
	return persistError{backendError{op: "save", model: model, cause: cause}}
}

// IsPersistenceFailure reports whether err is a checkpoint I/O failure.
func IsPersistenceFailure(err error) bool {
	_, ok := err.(persistError)
	return ok
}

// IsBackendFailure reports whether err is any backend-reported failure
// (load, generation, training, or persistence).
func IsBackendFailure(err error) bool {
	return IsLoadFailure(err) || IsGenerationFailure(err) || IsTrainingFailure(err) ||
		IsEvaluationFailure(err) || IsPersistenceFailure(err)
}
