package protocol

import "errors"

// Framing errors are local to one connection.
var (
	ErrTruncated  = errors.New("protocol: truncated frame")
	ErrShortWrite = errors.New("protocol: short write")
)

// Protocol errors carry expected/actual values through session.MismatchError.
var (
	ErrTypeMismatch    = errors.New("protocol: message type mismatch")
	ErrVersionMismatch = errors.New("protocol: protocol version mismatch")
)
