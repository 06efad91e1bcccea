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

package parameter

import (
	"errors"
)

var (
	// ErrLockFailed indicates that the store lock could not be acquired in
	// time. The operation can be retried.
	ErrLockFailed = errors.New("parameter store lock timed out")

	// ErrStore is the generic store error: corrupt flash, no valid
	// signature, CRC mismatch on load, or failed flash operations.
	ErrStore = errors.New("parameter store error")

	// ErrInvalidEntry indicates a malformed registration table.
	ErrInvalidEntry = errors.New("invalid parameter entry")
)
