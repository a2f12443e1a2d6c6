// Package errors provides the structured error type used across ctckit.
// Every failure carries a machine-readable code, a human-readable message,
// optional details and the underlying cause, and maps to an HTTP status for
// the tracker board.
package errors
