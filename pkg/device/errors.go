package device

import "errors"

var (
	// ErrNotFound indicates a device was not found
	ErrNotFound = errors.New("device not found")

	// ErrTimeout indicates a radio operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNotConnected indicates the coordinator is not connected
	ErrNotConnected = errors.New("coordinator not connected")

	// ErrUnreachable indicates the device did not acknowledge delivery
	ErrUnreachable = errors.New("device unreachable")

	// ErrUnknownCluster indicates no handler exists for the cluster
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrUnknownAttribute indicates an attribute is not known to the handler
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrUnsupported indicates an operation is not supported by the device
	ErrUnsupported = errors.New("operation not supported")

	// ErrCapabilityMismatch indicates a command does not match device capabilities
	ErrCapabilityMismatch = errors.New("capability mismatch")

	// ErrValidation indicates a payload failed validation
	ErrValidation = errors.New("validation error")

	// ErrPersistence indicates a state or rule save failed
	ErrPersistence = errors.New("persistence failure")
)
