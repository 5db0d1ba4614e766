/*
Package messenger implements the request/response channel between the signer
and the host that embeds it.

The channel is layered over a Port, a bidirectional stream of Message frames.
Two ports are provided: Pipe, an in-process pair used for embedding and tests,
and WebSocketPort, which carries frames as JSON text messages over a
gorilla/websocket connection.

# Handshake

The signer side (child) calls Connect, which sends a syn frame every
HandshakeRetryInterval until the host answers with ack or HandshakeTimeout
elapses. The host side (parent) calls Accept, which waits for the first syn.
A parent re-acknowledges every later syn, so a child that restarts can
reconnect over the same port.

# Requests

Handle binds one inbound event name to a HandlerFunc. Call sends a request
frame, re-sends it every CallOptions.RetryInterval and waits for the response
carrying the same id until CallOptions.Timeout expires. A re-delivered request
whose handler already ran is answered from a bounded response cache; one that
is still running is ignored. Requests for events nobody handles are dropped so
that redelivery covers handlers registered after the handshake.

# Origins

Each frame carries the sender's origin. A channel with a pinned TargetOrigin
drops frames from any other origin. When the transport knows the peer's origin
(the Origin header of a WebSocket upgrade) that value takes precedence over
the one carried in the frame. AnyOrigin ("*") accepts everything.

# EventsService

EventsService owns one Channel for the signer side and tracks the
Uninitialized, Handshaking, Connected states. Init is idempotent and Messenger
only hands out the channel once connected.
*/
package messenger
