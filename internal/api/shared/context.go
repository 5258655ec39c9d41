// Package shared holds the helpers the API handlers and middleware
// have in common: context keys and JSON response writing.
package shared

// ContextKey is a private type for request context keys, preventing
// collisions with keys set by other packages.
type ContextKey int

const (
	// ClaimsContextKey carries the caller's verified *auth.Claims.
	ClaimsContextKey ContextKey = iota
)
