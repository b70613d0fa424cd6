// Package alarm implements the REST transport of the gateway.
//
// It adapts HTTP requests to the alarms service: a chi router with a chain of
// pre-condition middleware (request id, request-scoped logger, access log,
// bearer token, JSON media type) in front of thin handlers that translate
// service errors into HTTP status codes.
package alarm
