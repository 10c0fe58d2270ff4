// Package errors implements a three-class error classification for semquery:
// Transient (temporary, retryable), Invalid (bad input, non-retryable) and
// Fatal (unrecoverable for the current schema version or configuration).
//
// Components wrap errors with context using the Wrap helpers, which produce
// messages of the form "Component.Method: action failed: cause":
//
//	if err := builder.Build(s); err != nil {
//	    return errors.WrapFatal(err, "Engine", "graphFor", "schema graph build")
//	}
//
// Classification survives wrapping, so callers use IsTransient, IsInvalid
// and IsFatal on any error chain:
//
//	if errors.IsTransient(err) {
//	    // retry with backoff
//	}
//
// Remote operation invocation uses RetryConfig.ToRetryConfig to drive the
// pkg/retry backoff loop for transient failures only.
package errors
