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

import "errors"

var (
	// ErrInvalidSize indicates a payload that overflows the size field, or a
	// destination buffer too small for a payload.
	ErrInvalidSize = errors.New("invalid block size")

	// ErrInvalidCode indicates a code outside of 1 through 32767.
	ErrInvalidCode = errors.New("invalid block code")

	// ErrCRC indicates a recognized block at a given location whose CRC
	// check failed.
	ErrCRC = errors.New("block CRC error")

	// ErrNotFound indicates that a scan was exhausted without a match.
	ErrNotFound = errors.New("block not found")
)
