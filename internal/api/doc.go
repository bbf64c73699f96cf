// Package api handles incoming HTTP requests for the business service and
// the wallet gateway. Handlers decode and validate JSON payloads, call the
// banking service or the wallet gateway, and translate domain errors into
// status codes and sanitized messages. Raw error text only ever reaches the
// redacted logs.
package api
