package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/tlvhello/internal/protocol"
)

const (
	HeaderLen  = 6
	PayloadLen = 4
	FrameLen   = HeaderLen + PayloadLen
)

// Message type tags.
const (
	TypeHello uint32 = 0
	// TypeData is reserved and never sent by the handshake.
	TypeData uint32 = 1
)

// Version is the only protocol version this handshake speaks.
const Version uint32 = 1

// Message is one decoded frame.
type Message struct {
	Type    uint32
	Length  uint16
	Payload uint32
}

// Hello returns the message the server advertises on every connection.
func Hello() Message {
	return Message{Type: TypeHello, Length: PayloadLen, Payload: Version}
}

// Encode lays out a frame with the fixed payload length.
func Encode(typ uint32, payload uint32) [FrameLen]byte {
	return EncodeMessage(Message{Type: typ, Length: PayloadLen, Payload: payload})
}

// EncodeMessage lays out m as given, including its declared length.
func EncodeMessage(m Message) [FrameLen]byte {
	var buf [FrameLen]byte
	binary.BigEndian.PutUint32(buf[0:4], m.Type)
	binary.BigEndian.PutUint16(buf[4:6], m.Length)
	binary.BigEndian.PutUint32(buf[6:10], m.Payload)
	return buf
}

// Decode interprets the first FrameLen bytes of b.
func Decode(b []byte) (Message, error) {
	if len(b) < FrameLen {
		return Message{}, fmt.Errorf("%w: got %d of %d bytes", protocol.ErrTruncated, len(b), FrameLen)
	}
	return Message{
		Type:    binary.BigEndian.Uint32(b[0:4]),
		Length:  binary.BigEndian.Uint16(b[4:6]),
		Payload: binary.BigEndian.Uint32(b[6:10]),
	}, nil
}

// ReadFrame blocks until a whole frame is read or the peer stops sending.
func ReadFrame(r io.Reader) (Message, error) {
	var buf [FrameLen]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Message{}, fmt.Errorf("%w: got %d of %d bytes", protocol.ErrTruncated, n, FrameLen)
		}
		return Message{}, err
	}
	return Decode(buf[:])
}

// WriteFrame writes the whole frame, retrying short writes.
func WriteFrame(w io.Writer, m Message) error {
	buf := EncodeMessage(m)
	return writeFull(w, buf[:])
}

func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if n < 0 || n > len(b) {
			return fmt.Errorf("tlv: invalid write count %d", n)
		}
		b = b[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %d bytes left", protocol.ErrShortWrite, len(b))
		}
	}
	return nil
}
