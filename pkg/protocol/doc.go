// Package protocol implements the command/response protocol between the
// two controllers on top of fixed size link frames.
package protocol

// The link is request/response oriented without request identifiers:
// at most one request may be in flight, and the next RETURN frame is its
// reply. Frames received while no request is pending are either handled
// immediately (KNOCK, MODE, LINK_STATE are answered, REBOOT requests are
// handed to a RebootHandler) or queued as unsolicited commands for the
// application (notifications). A RETURN frame received while no request
// is pending is dropped.
