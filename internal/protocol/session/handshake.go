package session

import (
	"fmt"
	"io"

	"github.com/danmuck/tlvhello/internal/protocol"
	"github.com/danmuck/tlvhello/internal/protocol/tlv"
)

// MismatchError reports which handshake check failed.
type MismatchError struct {
	Field    string
	Expected uint32
	Actual   uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("session: %s mismatch: expected %d, got %d", e.Field, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	switch e.Field {
	case FieldType:
		return protocol.ErrTypeMismatch
	case FieldVersion:
		return protocol.ErrVersionMismatch
	default:
		return nil
	}
}

const (
	FieldType    = "type"
	FieldVersion = "version"
)

// SendHello writes the HELLO v1 frame.
func SendHello(w io.Writer) error {
	if err := tlv.WriteFrame(w, tlv.Hello()); err != nil {
		return fmt.Errorf("session: send hello: %w", err)
	}
	return nil
}

// ReceiveHello reads one full frame and validates it.
// The decoded message is returned even when validation fails.
func ReceiveHello(r io.Reader) (tlv.Message, error) {
	m, err := tlv.ReadFrame(r)
	if err != nil {
		return tlv.Message{}, fmt.Errorf("session: receive hello: %w", err)
	}
	if err := Validate(m); err != nil {
		return m, err
	}
	return m, nil
}

// Validate checks the type tag first, then the advertised version.
func Validate(m tlv.Message) error {
	if m.Type != tlv.TypeHello {
		return &MismatchError{Field: FieldType, Expected: tlv.TypeHello, Actual: m.Type}
	}
	if m.Payload != tlv.Version {
		return &MismatchError{Field: FieldVersion, Expected: tlv.Version, Actual: m.Payload}
	}
	return nil
}
