// Package alarms runs the gateway use cases against the remote alarm system:
// logging in, and arming or disarming while holding the remote global lock.
//
// The lock lives in the remote system and is contended by clients this
// process cannot see, so no local mutex guards it. Every acquired lock is
// released on all exit paths, and nothing is retried.
package alarms
