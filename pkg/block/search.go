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
	"encoding/hex"
	"fmt"
	"io"
)

// Block is a decoded, CRC-valid block found in a region.
type Block struct {
	Header
	// Offset of the header within the region
	Offset int
	// Address of the header
	Address uint32
	// Payload aliases the region's bytes; copy it if it needs to outlive
	// the region.
	Payload        []byte
	PayloadAddress uint32
}

// end returns the offset right behind this block's header. For head-style
// blocks that's the end of the block, for tail-style blocks the payload
// precedes the header and has already been traversed.
func (b *Block) end() int {
	if b.Style() == Tail {
		return b.Offset + HeaderSize
	}
	return b.Offset + int(b.Size)
}

//
func (b *Block) String() string {
	return fmt.Sprintf("code %5d  %s  header 0x%08x  payload 0x%08x  %5d bytes",
		b.Code, b.Style(), b.Address, b.PayloadAddress, len(b.Payload))
}

// Emit writes a description of this block followed by a hex dump of its
// payload.
func (b *Block) Emit(w io.Writer) {
	io.WriteString(w, fmt.Sprintf("\nBLOCK: %s\n", b.String()))
	d := hex.Dumper(w)
	defer d.Close()
	d.Write(b.Payload)
}

/*
	decodeAt checks for a block whose header is located at offset off in data.
	It returns ErrNotFound when there is no start signature at off, and ErrCRC
	when there is one, but the header fields are implausible or the CRC check
	fails.
*/
func decodeAt(data []byte, base uint32, off int) (Block, error) {

	if off < 0 || len(data)-off < HeaderSize {
		return Block{}, ErrNotFound
	}

	h := parseHeader(data[off:])

	if h.Signature != HeadSignature && h.Signature != TailSignature {
		return Block{}, ErrNotFound
	}

	if h.Code < MinCode || h.Size < HeaderSize || h.Size > MaxBlockSize {
		return Block{}, ErrCRC
	}

	var start, end int // payload bounds

	if h.Style() == Tail {
		start = off - h.PayloadSize()
		end = off
		if start < 0 {
			return Block{}, ErrCRC
		}
	} else {
		start = off + HeaderSize
		end = off + int(h.Size)
		if end > len(data) {
			return Block{}, ErrCRC
		}
	}

	zeroed := h
	zeroed.CRC = 0
	var crc uint16

	if h.Style() == Tail {
		crc = CRC16(CRC16(Seed, data[start:end]), zeroed.Bytes())
	} else {
		crc = CRC16(CRC16(Seed, zeroed.Bytes()), data[start:end])
	}

	if crc^h.CRC != 0 {
		return Block{}, ErrCRC
	}

	return Block{
		Header:         h,
		Offset:         off,
		Address:        base + uint32(off),
		Payload:        data[start:end],
		PayloadAddress: base + uint32(start),
	}, nil
}

/*
	Search scans region r from its cursor for the first valid block with the
	given code. Code 0 matches any block. Bytes that don't start a block are
	skipped one word at a time. A block with a start signature whose CRC check
	fails is skipped the same way, since its size field can't be trusted. A
	valid block that doesn't match is skipped as a whole.

	On success, the cursor is placed right behind the found block, so calling
	Search again continues the scan. When the region is exhausted, ErrNotFound
	is returned.
*/
func Search(r *Region, code int16) (Block, error) {

	if code < 0 {
		return Block{}, fmt.Errorf("%w: %d", ErrInvalidCode, code)
	}

	for r.Remaining() >= HeaderSize {

		b, err := decodeAt(r.data, r.base, r.off)

		if err != nil {
			r.SkipWord()
			continue
		}

		r.Seek(b.end())

		if code == 0 || b.Code == code {
			return b, nil
		}
	}

	r.Advance(r.Remaining())
	return Block{}, ErrNotFound
}

/*
	SearchAt checks exactly one location, the header at offset off in data,
	for a block with the given code, or any block if code is 0. Other than
	Search, a CRC failure is reported as ErrCRC. For a tail-style block, off
	is the offset of its trailing header.
*/
func SearchAt(data []byte, base uint32, off int, code int16) (Block, error) {

	if code < 0 {
		return Block{}, fmt.Errorf("%w: %d", ErrInvalidCode, code)
	}

	b, err := decodeAt(data, base, off)
	if err != nil {
		return Block{}, err
	}

	if code != 0 && b.Code != code {
		return Block{}, ErrNotFound
	}

	return b, nil
}

/*
	GetData searches r for a block with the given code and copies its payload
	into dest, returning the payload length. If dest is nil, only the length
	is returned. If dest is too small for the payload, ErrInvalidSize is
	returned and nothing is copied.
*/
func GetData(r *Region, code int16, dest []byte) (int, error) {

	b, err := Search(r, code)
	if err != nil {
		return 0, err
	}

	if dest == nil {
		return len(b.Payload), nil
	}

	if len(dest) < len(b.Payload) {
		return 0, fmt.Errorf("%w: need %d bytes for payload of code %d, have %d",
			ErrInvalidSize, len(b.Payload), code, len(dest))
	}

	return copy(dest, b.Payload), nil
}

// GetAddr searches r for a block with the given code. Other than GetData, it
// doesn't copy the payload, but returns the block, which refers to payload
// bytes and address.
func GetAddr(r *Region, code int16) (Block, error) {
	return Search(r, code)
}

// Enumerate returns the next valid block of any code in r, or ErrNotFound
// when the region is exhausted.
func Enumerate(r *Region) (Block, error) {
	return Search(r, 0)
}
