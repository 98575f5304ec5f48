// Package link moves fixed size frames between the two controllers.
package link

// Frames are exchanged over a synchronous full-duplex link (SPI), one
// frame per transfer. There is no framing in the wire format: the link
// layer delivers frames aligned.
//
// Three bounded queues are shared between the transport and the protocol
// layer (see Channels):
//
//   Outbound:    frames waiting to be transmitted to the peer;
//   Unsolicited: peer originated frames which are not replies;
//   Return:      replies to the single outstanding request.
