// Package elmo is an HTTP client for the Elmo e-Connect web API.
//
// A Client is bound to at most one session. Sessions come either from Auth
// or from a token the caller already holds (WithSession). Arming and
// disarming require the global system lock, taken with Client.Lock and
// released with Lock.Release.
package elmo
