// Package protocol owns the hello handshake wire contract.
//
// Ownership boundary:
// - tlv frame primitives (protocol/tlv)
// - handshake send/receive and validation (protocol/session)
// - shared error taxonomy
package protocol
