// Package savestate reads and enumerates persisted save slots.
//
// A slot file is a fixed 256-byte header followed by the engine payload.
// Header layout, little endian:
//
//	0x00  magic      "CST\x1B"
//	0x04  program id u64
//	0x0C  revision   20 bytes (build commit)
//	0x20  time       u64 epoch seconds
//	0x28  reserved   216 bytes
package savestate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the encoded header length.
const HeaderSize = 256

var (
	magic = [4]byte{'C', 'S', 'T', 0x1B}

	ErrBadMagic        = errors.New("not a save state file")
	ErrProgramMismatch = errors.New("save state belongs to another title")
)

// Header is the fixed prefix of every slot file.
type Header struct {
	ProgramID uint64
	Revision  [20]byte
	Time      uint64
}

type rawHeader struct {
	Magic     [4]byte
	ProgramID uint64
	Revision  [20]byte
	Time      uint64
	Reserved  [216]byte
}

// MarshalBinary encodes h into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	raw := rawHeader{Magic: magic, ProgramID: h.ProgramID, Revision: h.Revision, Time: h.Time}
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadHeader decodes a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var raw rawHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	if raw.Magic != magic {
		return Header{}, ErrBadMagic
	}
	return Header{ProgramID: raw.ProgramID, Revision: raw.Revision, Time: raw.Time}, nil
}
