package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scpigo/hislipd/pkg/bufpool"
)

// ErrBadMagic is returned by DecodeHeader when the first two bytes do not
// match Magic.
var ErrBadMagic = fmt.Errorf("wire: bad magic bytes")

// EncodeHeader writes h's 16-byte wire representation into buf, which must
// be at least HeaderSize bytes long. Returns the number of bytes written.
func EncodeHeader(buf []byte, h Header) int {
	_ = buf[:HeaderSize] // bounds check hint

	buf[0] = Magic[0]
	buf[1] = Magic[1]
	buf[2] = byte(h.Type)
	buf[3] = h.Control
	binary.BigEndian.PutUint32(buf[4:8], h.Parameter)
	binary.BigEndian.PutUint64(buf[8:16], h.PayloadLen)
	return HeaderSize
}

// DecodeHeader parses a 16-byte wire header from buf, which must be at
// least HeaderSize bytes long.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] {
		return Header{}, ErrBadMagic
	}

	return Header{
		Type:       Type(buf[2]),
		Control:    buf[3],
		Parameter:  binary.BigEndian.Uint32(buf[4:8]),
		PayloadLen: binary.BigEndian.Uint64(buf[8:16]),
	}, nil
}

// Message is a decoded frame: its header plus the payload bytes that
// followed it on the wire.
type Message struct {
	Header  Header
	Payload []byte
}

// ReadMessage reads one frame from r: a 16-byte header followed by
// header.PayloadLen bytes of payload. The payload buffer is drawn from
// bufpool and must be returned via bufpool.Put by the caller once done
// with it. maxPayload bounds the payload length accepted, guarding against
// a peer claiming an unreasonable size; a length above it is reported as
// ErrPayloadTooLarge without attempting the allocation.
func ReadMessage(r io.Reader, maxPayload uint64) (Message, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return Message{}, err
	}

	hdr, err := DecodeHeader(hdrBuf[:])
	if err != nil {
		return Message{}, err
	}

	if hdr.PayloadLen > maxPayload {
		return Message{}, ErrPayloadTooLarge
	}
	if hdr.PayloadLen == 0 {
		return Message{Header: hdr}, nil
	}

	payload := bufpool.Get(int(hdr.PayloadLen))
	if _, err := io.ReadFull(r, payload); err != nil {
		bufpool.Put(payload)
		return Message{}, err
	}

	return Message{Header: hdr, Payload: payload}, nil
}

// ErrPayloadTooLarge is returned by ReadMessage when a header claims a
// payload length exceeding the caller-supplied maximum.
var ErrPayloadTooLarge = fmt.Errorf("wire: payload exceeds maximum message size")

// WriteMessage writes hdr and payload to w as a single frame. hdr.PayloadLen
// is overwritten with len(payload) before encoding, so callers need not set
// it themselves.
func WriteMessage(w io.Writer, hdr Header, payload []byte) error {
	hdr.PayloadLen = uint64(len(payload))

	buf := bufpool.Get(HeaderSize + len(payload))
	defer bufpool.Put(buf)

	EncodeHeader(buf[:HeaderSize], hdr)
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}
