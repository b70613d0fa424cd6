// Package manifest renders the App Engine deployment descriptor (app.yaml)
// that runs the gateway against a given remote alarm system.
package manifest
