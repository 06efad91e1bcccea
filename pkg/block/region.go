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

/*
	Region is a storage region treated as a dense sequence of blocks. It wraps
	a byte slice together with the flash address of its first byte, and keeps
	a cursor that scanning functions advance. Every access is bounds checked
	against the slice, so a corrupted size field can never lead outside of it.
*/
type Region struct {
	data []byte
	base uint32
	off  int
}

// NewRegion creates a region over data, with data[0] located at flash
// address base.
func NewRegion(data []byte, base uint32) *Region {
	return &Region{data: data, base: base}
}

// Offset returns the cursor position, relative to the start of the region.
func (r *Region) Offset() int {
	return r.off
}

// Address returns the flash address the cursor points to.
func (r *Region) Address() uint32 {
	return r.base + uint32(r.off)
}

// Remaining returns the number of bytes between cursor and region end.
func (r *Region) Remaining() int {
	return len(r.data) - r.off
}

// Advance moves the cursor n bytes forward. It returns false and places the
// cursor at the region end if fewer than n bytes remain.
func (r *Region) Advance(n int) bool {
	if n < 0 || n > r.Remaining() {
		r.off = len(r.data)
		return false
	}
	r.off += n
	return true
}

// SkipWord moves the cursor by one word.
func (r *Region) SkipWord() bool {
	return r.Advance(WordSize)
}

// Seek places the cursor at offset off.
func (r *Region) Seek(off int) bool {
	if off < 0 || off > len(r.data) {
		return false
	}
	r.off = off
	return true
}

// Bytes returns the bytes between cursor and region end.
func (r *Region) Bytes() []byte {
	return r.data[r.off:]
}
