// Package filexfer implements the wire encoding for secsh-filexfer as described in https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02
//
// Only the client half of version 3 is covered: request marshaling and response decoding.
package filexfer

// Default length values,
// Defined in draft-ietf-secsh-filexfer-02 section 3.
const (
	DefaultMaxPacketLength = 34000
	DefaultMaxDataLength   = 32768
)

// ProtocolVersion is the only protocol version this package speaks.
const ProtocolVersion = 3
