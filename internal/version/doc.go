// Package version exposes build metadata for the gateway.
//
// Version, Commit and BuildTime may be injected via Go ldflags; otherwise the
// commit and build time are taken from the VCS information embedded by the toolchain.
package version
