package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates a missing or malformed configuration key.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeUnknownModel indicates model.select names no registered model.
	ErrCodeUnknownModel ErrorCode = "UNKNOWN_MODEL"
	// ErrCodeUnknownMetric indicates a metric name with no registered function.
	ErrCodeUnknownMetric ErrorCode = "UNKNOWN_METRIC"
	// ErrCodeUnknownUpstream indicates an upstream name with no registered extractor.
	ErrCodeUnknownUpstream ErrorCode = "UNKNOWN_UPSTREAM"
)

// Input errors
const (
	// ErrCodeInvalidInput indicates a batch or argument that cannot be processed.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested split, run or object does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Runtime errors
const (
	// ErrCodeIO indicates a filesystem, storage or database failure.
	ErrCodeIO ErrorCode = "IO_ERROR"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)
