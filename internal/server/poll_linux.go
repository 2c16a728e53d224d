package server

import "golang.org/x/sys/unix"

// pollPeerClosed reports a peer that shut down its write side.
const pollPeerClosed = unix.POLLRDHUP
