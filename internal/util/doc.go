// Package util holds small helpers shared by the gateway packages.
//
// # Error Conventions
//
// Packages follow one error pattern:
//
//   - Sentinel errors (errors.New) for stable conditions checked with
//     errors.Is, such as ErrCircuitOpen.
//   - Structured error types that carry context (jwt.ValidationError,
//     proxy.ProxyError, docs.FetchError). Each implements Error, Unwrap
//     when it wraps, and Is.
//   - fmt.Errorf with %w for ad-hoc wrapping.
//
// Errors that reach a client are rendered by WriteError as
// {"code": "...", "message": "..."}.
package util
