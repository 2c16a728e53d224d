//go:build unix && !linux

package server

// pollPeerClosed is Linux only. Elsewhere a pre-due close surfaces as POLLHUP
// or as a failed write once the slot is due.
const pollPeerClosed = 0
