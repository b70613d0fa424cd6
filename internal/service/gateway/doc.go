// Package gateway runs the alarm gateway process: the REST API, its metrics
// endpoint and an optional gRPC health service.
package gateway
