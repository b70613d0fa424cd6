// Package credentials validates the shape of the credentials carried by
// gateway requests: the bearer token in the Authorization header, the access
// code in alarm payloads, and the username/password pair used to log in.
//
// Validation is syntactic only. Whether a token is still live is discovered
// by the remote alarm system when it is used.
package credentials
