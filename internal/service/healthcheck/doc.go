// Package healthcheck queries the gateway's gRPC health service, once for
// container health checks or periodically to watch a running gateway.
package healthcheck
