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
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

/*
	Memory is a NOR flash simulated in RAM. Erasing sets bytes to 0xff,
	programming can only clear bits, i.e. the new content of a byte is the
	bitwise AND of old content and programmed value, just as with the real
	chip. Programming is page based, erasing sector based.

	FailProgram and FailErase can be set to inject faults. They are called
	before the respective operation, and when they return an error, the
	operation is not carried out.
*/
type Memory struct {
	data       []byte
	pageSize   int
	sectorSize int
	programs   int
	mutex      sync.Mutex
	//
	FailProgram func(addr uint32) error
	FailErase   func(addr uint32) error
}

// NewMemory creates an erased flash of the given geometry. size must be a
// multiple of sectorSize, which in turn must be a multiple of pageSize.
func NewMemory(size uint32, pageSize, sectorSize int) (*Memory, error) {

	if err := checkGeometry(size, pageSize, sectorSize); err != nil {
		return nil, err
	}

	m := &Memory{
		data:       make([]byte, size),
		pageSize:   pageSize,
		sectorSize: sectorSize,
	}
	for ix := range m.data {
		m.data[ix] = 0xff
	}

	return m, nil
}

// checkGeometry validates a flash geometry: size must be a non-zero multiple
// of sectorSize, which in turn must be a multiple of pageSize.
func checkGeometry(size uint32, pageSize, sectorSize int) error {

	if pageSize <= 0 || sectorSize <= 0 || sectorSize%pageSize != 0 {
		return fmt.Errorf(
			"invalid flash geometry: page size %d, sector size %d",
			pageSize, sectorSize)
	}

	if size == 0 || size%uint32(sectorSize) != 0 {
		return fmt.Errorf(
			"flash size %d is not a multiple of sector size %d", size, sectorSize)
	}

	return nil
}

//
func (m *Memory) PageSize() int {
	return m.pageSize
}

//
func (m *Memory) SectorSize() int {
	return m.sectorSize
}

//
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Programs returns the number of page programs carried out so far.
func (m *Memory) Programs() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.programs
}

// Bytes gives direct access to the flash content.
func (m *Memory) Bytes() []byte {
	return m.data
}

//
func (m *Memory) Erase(addr, length uint32) error {

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.check(addr, length); err != nil {
		return err
	}

	s := uint32(m.sectorSize)
	if addr%s != 0 || length%s != 0 {
		return fmt.Errorf("%w: erasing %d bytes at 0x%08x, sector size %d",
			ErrAlignment, length, addr, s)
	}

	if m.FailErase != nil {
		if err := m.FailErase(addr); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"address": fmt.Sprintf("0x%08x", addr), "length": length}).Trace("erase")

	for ix := addr; ix < addr+length; ix++ {
		m.data[ix] = 0xff
	}

	return nil
}

//
func (m *Memory) ProgramPage(addr uint32, buf []byte) error {

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.check(addr, uint32(len(buf))); err != nil {
		return err
	}

	if addr%uint32(m.pageSize) != 0 || len(buf) > m.pageSize {
		return fmt.Errorf("%w: programming %d bytes at 0x%08x, page size %d",
			ErrAlignment, len(buf), addr, m.pageSize)
	}

	if m.FailProgram != nil {
		if err := m.FailProgram(addr); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"address": fmt.Sprintf("0x%08x", addr), "length": len(buf)}).Trace("program")

	for ix, b := range buf {
		m.data[int(addr)+ix] &= b
	}
	m.programs++

	return nil
}

//
func (m *Memory) Read(addr uint32, buf []byte) error {

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.check(addr, uint32(len(buf))); err != nil {
		return err
	}

	copy(buf, m.data[addr:])
	return nil
}

//
func (m *Memory) IsErased(addr, length uint32) bool {

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.check(addr, length) != nil {
		return false
	}

	for _, b := range m.data[addr : addr+length] {
		if b != 0xff {
			return false
		}
	}
	return true
}

//
func (m *Memory) check(addr, length uint32) error {
	if uint64(addr)+uint64(length) > uint64(m.Size()) {
		return fmt.Errorf("%w: %d bytes at 0x%08x, flash size %d",
			ErrOutOfRange, length, addr, m.Size())
	}
	return nil
}
