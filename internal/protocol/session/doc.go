// Package session owns one handshake exchange over an established connection.
//
// Ownership boundary:
// - server side: send HELLO v1 exactly once
// - client side: read one full frame and validate type/version
// - per-session deadline defaults
package session
