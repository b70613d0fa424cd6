// Package config defines the gateway settings and provides helpers to load,
// validate and save them.
//
// Settings are layered: defaults, an optional YAML file, then environment
// variables. ELMO_BASE_URL and ELMO_VENDOR name the remote alarm system and
// are mandatory; the base URL must use HTTPS.
package config
