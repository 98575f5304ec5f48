// Package upstream relays protocol events between the link and a host.
//
// Events are protobuf Structs carried as packets by an Upstream transport:
// MQTT (subpackage mqtt), a length-prefixed byte stream (subpackage stream)
// or a websocket (subpackage websocket).
package upstream
