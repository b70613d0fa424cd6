// Package alarm contains core domain types shared by the gateway layers.
//
// It defines the session Token, the per-request AccessCode, login Credentials,
// the State returned after arming or disarming, and the error taxonomy the
// remote alarm system can produce.
package alarm
