// Package server holds the process-wide wiring of the quoteflow agent.
//
// ServerContext builds the session store, auth gateway, object and record
// stores, upload service and quotation generator from the configuration.
// Gmail and Sheets clients need a Google provider token from a signed-in
// session, so they are created lazily on first use and cached.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed. The detailed
// endpoint includes the token refresher status and a ping of every
// registered dependency. MetricsServer exposes Prometheus metrics on a
// separate port.
package server
