/*
   ParmStore - redundant flash parameter store
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of ParmStore.

   ParmStore is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   ParmStore is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with ParmStore. If not, see <http://www.gnu.org/licenses/>.
*/

package block

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of a block header; all fields are words, there is
// no padding.
const HeaderSize = 8

// WordSize is the step width used when scanning over unrecognized bytes.
const WordSize = 2

// start signatures
const HeadSignature uint16 = 0xA55A
const TailSignature uint16 = 0x5AA5

// the size field only has 15 usable bits
const MaxBlockSize = 32767
const MaxPayload = MaxBlockSize - HeaderSize

//
const MinCode = 1
const MaxCode = 32767

//
type Style int

const (
	Head Style = iota
	Tail
)

//
func (s Style) String() string {
	switch s {
	case Head:
		return "head"
	case Tail:
		return "tail"
	default:
		return "<unknown>"
	}
}

/*
	Header is the fixed part of every block. For a head-style block it
	immediately precedes the payload, for a tail-style block it immediately
	follows it. The CRC covers all bytes of the block in address order, with
	the CRC field itself taken as zero.
*/
type Header struct {
	Signature uint16
	Code      int16
	Size      uint16
	CRC       uint16
}

// NewHead creates the header for a head-style block carrying payload.
func NewHead(code int16, payload []byte) (Header, error) {

	if err := checkCode(code); err != nil {
		return Header{}, err
	}

	if len(payload) > MaxPayload {
		return Header{}, fmt.Errorf("%w: payload of %d bytes exceeds maximum of %d",
			ErrInvalidSize, len(payload), MaxPayload)
	}

	h := Header{
		Signature: HeadSignature,
		Code:      code,
		Size:      uint16(HeaderSize + len(payload)),
	}
	h.CRC = CRC16(CRC16(Seed, h.Bytes()), payload)

	return h, nil
}

// TailBegin starts a tail-style block. Payload is streamed with AddData, and
// the block is closed with End.
func TailBegin(code int16) (Header, error) {
	if err := checkCode(code); err != nil {
		return Header{}, err
	}
	return Header{
		Signature: TailSignature,
		Code:      code,
		Size:      HeaderSize,
		CRC:       Seed,
	}, nil
}

// AddData folds the next payload chunk into size and running CRC of a
// tail-style block.
func (h *Header) AddData(p []byte) error {
	if int(h.Size)+len(p) > MaxBlockSize {
		return fmt.Errorf("%w: block of code %d would grow to %d bytes",
			ErrInvalidSize, h.Code, int(h.Size)+len(p))
	}
	h.CRC = CRC16(h.CRC, p)
	h.Size += uint16(len(p))
	return nil
}

// End finalizes a tail-style block by folding the header bytes into the
// running CRC.
func (h *Header) End() {
	running := h.CRC
	h.CRC = 0
	h.CRC = CRC16(running, h.Bytes())
}

// PayloadSize returns the number of payload bytes described by this header.
func (h *Header) PayloadSize() int {
	return int(h.Size) - HeaderSize
}

// Style returns the block style indicated by the start signature.
func (h *Header) Style() Style {
	if h.Signature == TailSignature {
		return Tail
	}
	return Head
}

// Bytes returns the little-endian wire representation of the header.
func (h *Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf
}

//
func (h *Header) put(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], h.Signature)
	binary.LittleEndian.PutUint16(buf[2:], uint16(h.Code))
	binary.LittleEndian.PutUint16(buf[4:], h.Size)
	binary.LittleEndian.PutUint16(buf[6:], h.CRC)
}

//
func parseHeader(buf []byte) Header {
	return Header{
		Signature: binary.LittleEndian.Uint16(buf[0:]),
		Code:      int16(binary.LittleEndian.Uint16(buf[2:])),
		Size:      binary.LittleEndian.Uint16(buf[4:]),
		CRC:       binary.LittleEndian.Uint16(buf[6:]),
	}
}

//
func checkCode(code int16) error {
	if code < MinCode {
		return fmt.Errorf("%w: %d", ErrInvalidCode, code)
	}
	return nil
}
