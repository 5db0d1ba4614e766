/*
Package httpserver serves the signer over HTTP.

The server exposes one functional endpoint, /frame, which upgrades the request
to a websocket and runs a messenger session over it. The signer acts as the
child side of the handshake: it sends syn frames until the host acknowledges,
then registers the signer operations on the channel. A session lasts until
either side closes the connection or the server shuts down.

When a target origin is configured, upgrades whose Origin header does not
match are rejected before any frame is exchanged, and the channel additionally
drops frames from other origins.

# Operational endpoints

	GET /livez    liveness probe
	GET /readyz   readiness probe, 503 while draining
	GET /drain    stop accepting new sessions
	GET /undrain  accept new sessions again
	GET /info     version and active session count
	/debug/*      pprof, when enabled

Prometheus metrics are served on a separate listen address by
metrics.MetricsServer.
*/
package httpserver
