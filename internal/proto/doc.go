// Package proto implements the thor wire protocol.
//
// A request is a fixed 28-byte little-endian header followed by an optional
// payload holding the image list and the message text. When the header
// announces a payload the daemon answers with a single ACK byte before the
// client may send it. A request carrying FlagQueryPID is answered with the
// daemon's PID and nothing else.
package proto
