package proto

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"os"

	"github.com/oklog/ulid/v2"
)

const (
	// HeaderSize is the exact size of an encoded header.
	HeaderSize = 28
	// Ack is written by the daemon before it reads a payload.
	Ack byte = 0x06
	// MaxPayload bounds image_len + message_len.
	MaxPayload = 1 << 20
	// PIDSize is the size of a PID reply.
	PIDSize = 4
)

// Header is the fixed part of a request.
type Header struct {
	Flags       Flags
	Timeout     float64
	ImageLen    uint32
	MessageLen  uint32
	BarPart     uint32
	BarElements uint32
}

// PayloadLen returns the number of payload bytes announced by the header.
func (h Header) PayloadLen() int {
	return int(h.ImageLen) + int(h.MessageLen)
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.Flags))
	binary.LittleEndian.PutUint64(buf[4:], math.Float64bits(h.Timeout))
	binary.LittleEndian.PutUint32(buf[12:], h.ImageLen)
	binary.LittleEndian.PutUint32(buf[16:], h.MessageLen)
	binary.LittleEndian.PutUint32(buf[20:], h.BarPart)
	binary.LittleEndian.PutUint32(buf[24:], h.BarElements)
	return buf, nil
}

// UnmarshalBinary decodes a header. Unknown flag bits are dropped and
// unusable timeouts are normalised to 0.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrMalformed
	}
	h.Flags = Flags(binary.LittleEndian.Uint32(buf[0:])) & knownFlags
	h.Timeout = math.Float64frombits(binary.LittleEndian.Uint64(buf[4:]))
	h.ImageLen = binary.LittleEndian.Uint32(buf[12:])
	h.MessageLen = binary.LittleEndian.Uint32(buf[16:])
	h.BarPart = binary.LittleEndian.Uint32(buf[20:])
	h.BarElements = binary.LittleEndian.Uint32(buf[24:])

	if math.IsNaN(h.Timeout) || math.IsInf(h.Timeout, 0) || h.Timeout < 0 {
		h.Timeout = 0
	}
	return nil
}

// Receive reads one message from rw. The caller is expected to have set a
// read deadline on the connection.
//
// It reads the header, acknowledges a non-empty payload with a single Ack
// byte, then reads image and text as one contiguous buffer.
func Receive(rw io.ReadWriter) (*Message, error) {
	var raw [HeaderSize]byte
	n, err := io.ReadFull(rw, raw[:])
	if err != nil {
		return nil, classifyRead("read header", n, err)
	}

	var h Header
	if err := h.UnmarshalBinary(raw[:]); err != nil {
		return nil, &ProtocolError{Op: "decode header", Err: err}
	}

	total := uint64(h.ImageLen) + uint64(h.MessageLen)
	if total > MaxPayload {
		return nil, &ProtocolError{Op: "decode header", Err: ErrMalformed}
	}

	msg := &Message{
		ID:          ulid.Make(),
		Flags:       h.Flags,
		Timeout:     h.Timeout,
		BarPart:     h.BarPart,
		BarElements: h.BarElements,
	}
	if total == 0 {
		return msg, nil
	}

	if _, err := rw.Write([]byte{Ack}); err != nil {
		return nil, classifyWrite("write ack", err)
	}

	payload := make([]byte, total)
	if n, err := io.ReadFull(rw, payload); err != nil {
		// A short payload is always malformed, even at offset 0.
		if n == 0 && !isTimeout(err) {
			n = -1
		}
		return nil, classifyRead("read payload", n, err)
	}

	split := int(h.ImageLen)
	msg.Image = payload[:split:split]
	msg.Text = payload[split:]
	if len(msg.Image) == 0 {
		msg.Image = nil
	}
	if len(msg.Text) == 0 {
		msg.Text = nil
	}
	return msg, nil
}

// Send writes m to rw, waiting for the daemon's Ack before the payload.
func Send(rw io.ReadWriter, m *Message) error {
	if m.PayloadLen() > MaxPayload {
		return &ProtocolError{Op: "encode", Err: ErrMalformed}
	}

	hdr, err := m.Header().MarshalBinary()
	if err != nil {
		return &ProtocolError{Op: "encode", Err: err}
	}
	if _, err := rw.Write(hdr); err != nil {
		return classifyWrite("write header", err)
	}
	if m.PayloadLen() == 0 {
		return nil
	}

	var ack [1]byte
	if n, err := io.ReadFull(rw, ack[:]); err != nil {
		return classifyRead("read ack", n, err)
	}
	if ack[0] != Ack {
		return &ProtocolError{Op: "read ack", Err: ErrNoAck}
	}

	payload := make([]byte, 0, m.PayloadLen())
	payload = append(payload, m.Image...)
	payload = append(payload, m.Text...)
	if _, err := rw.Write(payload); err != nil {
		return classifyWrite("write payload", err)
	}
	return nil
}

// WritePID writes a PID reply.
func WritePID(w io.Writer, pid int) error {
	var buf [PIDSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(pid)))
	if _, err := w.Write(buf[:]); err != nil {
		return classifyWrite("write pid", err)
	}
	return nil
}

// ReadPID reads a PID reply.
func ReadPID(r io.Reader) (int, error) {
	var buf [PIDSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, classifyRead("read pid", n, err)
	}
	return int(int32(binary.LittleEndian.Uint32(buf[:]))), nil
}

// classifyRead maps a failed io.ReadFull to the codec's error taxonomy.
// n is the number of bytes read before the failure; a negative n forces
// ErrMalformed.
func classifyRead(op string, n int, err error) error {
	switch {
	case isTimeout(err):
		return &ProtocolError{Op: op, Err: ErrTimeout}
	case n == 0 && errors.Is(err, io.EOF):
		return &ProtocolError{Op: op, Err: ErrConnectionAborted}
	default:
		return &ProtocolError{Op: op, Err: errors.Join(ErrMalformed, err)}
	}
}

func classifyWrite(op string, err error) error {
	if isTimeout(err) {
		return &ProtocolError{Op: op, Err: ErrTimeout}
	}
	return &ProtocolError{Op: op, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
