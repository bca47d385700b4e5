package mutation

// ValidationError is returned when a mutation is rejected before ever
// reaching the provider (spec.md §7 "validation_error"), e.g. declaring a
// winner without scores.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "mutation: validation_error: " + e.Reason
}

// ConflictError is the caller-facing error kind for a mutation that targets
// an entity in the wrong state, e.g. reopening a match that was never
// played. No Dispatcher method returns it: the dispatcher does no
// state check of its own, so a wrong-state mutation comes back as the
// provider client's error.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "mutation: conflict: " + e.Reason
}
