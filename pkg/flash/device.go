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

package flash

import (
	"errors"
)

var (
	// ErrFlash indicates a failed erase or program operation
	ErrFlash = errors.New("flash error")

	// ErrLockFailed indicates that the writer lock could not be acquired in
	// time
	ErrLockFailed = errors.New("flash writer lock timed out")

	//
	ErrAlignment  = errors.New("flash access not aligned")
	ErrOutOfRange = errors.New("flash access out of range")
)

// Programmer is the primitive the chunked writer needs: programming one
// pre-erased page.
type Programmer interface {
	// ProgramPage programs buf at addr. addr needs to be page aligned, buf
	// must not be longer than a page.
	ProgramPage(addr uint32, buf []byte) error

	PageSize() int
}

// Device is a byte-addressed NOR flash.
type Device interface {
	Programmer

	// Erase sets length bytes starting at addr to 0xff. Both addr and length
	// need to be aligned to the device's erase size.
	Erase(addr, length uint32) error

	Read(addr uint32, buf []byte) error

	// IsErased checks whether all length bytes starting at addr are erased.
	IsErased(addr, length uint32) bool

	// Size returns the size of the device in bytes
	Size() uint32
}
