package proxy

import "errors"

// Sentinel errors returned by the registration and forwarding operations.
var (
	// ErrInvalidInput is returned when the submitted webhook URL is not a Discord webhook URL.
	ErrInvalidInput = errors.New("invalid discord webhook url")

	// ErrMissingIdentifier is returned when a forward request carries no proxy ID.
	ErrMissingIdentifier = errors.New("proxy id is missing")

	// ErrNotFound is returned when a proxy ID has no mapping.
	// Store implementations return it from Get for missing keys as well.
	ErrNotFound = errors.New("proxy mapping not found")

	// ErrStorageWrite is returned when persisting a mapping fails.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrStorageRead is returned when reading a mapping fails for a reason other than absence.
	ErrStorageRead = errors.New("storage read failed")

	// ErrUpstreamForward is returned when relaying to the webhook fails (network, timeout or non-2xx).
	ErrUpstreamForward = errors.New("upstream forward failed")
)

// Kind returns a stable label for err, used in logs and metric attributes
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrMissingIdentifier):
		return "missing_identifier"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageWrite):
		return "storage_write_failure"
	case errors.Is(err, ErrStorageRead):
		return "storage_read_failure"
	case errors.Is(err, ErrUpstreamForward):
		return "upstream_forward_failure"
	default:
		return "unknown"
	}
}
