package hostabi

import "errors"

// Config-error taxonomy (spec.md §7): argument-validation failures raised
// as traps into the guest. A host function panics with one of these; the
// sandbox collaborator turns the panic into the guest's trap, failing the
// enclosing entry-point call for the tick.
var (
	ErrInvalidProcessName   = errors.New("invalid process name")
	ErrInvalidModuleName    = errors.New("invalid module name provided to construct pointer path")
	ErrInvalidPointerPathID = errors.New("invalid pointer path id provided")
	ErrInvalidPointerType   = errors.New("invalid pointer type provided")
	ErrTypeMismatch         = errors.New("attempt to read from a value of the wrong type")
	ErrUtf8Decode           = errors.New("the provided string was not valid utf-8")
)
