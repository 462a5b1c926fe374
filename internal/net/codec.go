package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire framing: [2 bytes LE: total length including header][frame bytes].
// Each frame is one envelope: [8B LE source tick][4B LE sequence]
// [2B LE message type][payload]. Nothing beyond the ordering fields is
// interpreted here; payload decoding belongs to the message registry.

const (
	headerLen   = 2
	envelopeLen = 14
	maxFrameLen = 65533
)

// Header carries an envelope's ordering fields.
type Header struct {
	SourceTick uint64
	Sequence   uint32
	MsgType    uint16
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	total := int(binary.LittleEndian.Uint16(hdr[:]))
	n := total - headerLen
	if n < envelopeLen || n > maxFrameLen {
		return nil, fmt.Errorf("invalid frame length %d", total)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("read frame body (%d bytes): %w", n, err)
	}
	return frame, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > maxFrameLen {
		return fmt.Errorf("frame too large: %d", len(frame))
	}
	var hdr [headerLen]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(frame)+headerLen))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// EncodeEnvelope builds a frame from the ordering fields and payload.
func EncodeEnvelope(h Header, payload []byte) []byte {
	frame := make([]byte, envelopeLen+len(payload))
	binary.LittleEndian.PutUint64(frame[0:8], h.SourceTick)
	binary.LittleEndian.PutUint32(frame[8:12], h.Sequence)
	binary.LittleEndian.PutUint16(frame[12:14], h.MsgType)
	copy(frame[envelopeLen:], payload)
	return frame
}

// DecodeEnvelope splits a frame into its header and payload bytes. The
// payload slice aliases the frame.
func DecodeEnvelope(frame []byte) (Header, []byte, error) {
	if len(frame) < envelopeLen {
		return Header{}, nil, fmt.Errorf("short envelope: %d bytes", len(frame))
	}
	h := Header{
		SourceTick: binary.LittleEndian.Uint64(frame[0:8]),
		Sequence:   binary.LittleEndian.Uint32(frame[8:12]),
		MsgType:    binary.LittleEndian.Uint16(frame[12:14]),
	}
	return h, frame[envelopeLen:], nil
}
