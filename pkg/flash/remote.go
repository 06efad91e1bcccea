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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

/*
	Remote is a flash chip attached to a serial adapter, e.g. a target board in
	bootloader mode or a flash programmer. The adapter announces itself with a
	hello, which the daemon answers. After that, the daemon sends command
	frames of frameLength bytes:

		| cmd | 0 | 0 | 0 | addr (u32 LE) | length (u32 LE) |

	For a program command, length data bytes follow the frame. The adapter
	replies with a status byte, followed by read data for a read command, a
	single erased flag byte for a check command, and the geometry for an info
	command.
*/
type Remote struct {
	port       io.ReadWriteCloser
	pageSize   int
	sectorSize int
	size       uint32
	mutex      sync.Mutex
}

//
const frameLength = 12
const maxTransfer = 1024

//
const (
	CmdInfo    = 'i'
	CmdRead    = 'r'
	CmdProgram = 'p'
	CmdErase   = 'e'
	CmdCheck   = 'c'
)

//
const (
	StatusOK     = 'k'
	StatusFailed = 'n'
)

var helloAdapter = []byte("hlof")
var helloDaemon = []byte("hlod")

// OpenRemote opens the serial port p and syncs with the adapter on it.
func OpenRemote(p string, baudRate uint) (*Remote, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        p,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, err
	}
	return NewRemote(port)
}

// NewRemote syncs with the adapter connected via port, and queries the
// flash geometry.
func NewRemote(port io.ReadWriteCloser) (*Remote, error) {

	r := &Remote{port: port}

	if err := r.syncOnHello(); err != nil {
		port.Close()
		return nil, err
	}

	info := make([]byte, 12)
	if err := r.exchange(CmdInfo, 0, 0, nil, info); err != nil {
		port.Close()
		return nil, fmt.Errorf("error querying flash info: %v", err)
	}

	r.pageSize = int(binary.LittleEndian.Uint32(info[0:]))
	r.sectorSize = int(binary.LittleEndian.Uint32(info[4:]))
	r.size = binary.LittleEndian.Uint32(info[8:])

	if r.pageSize > maxTransfer {
		port.Close()
		return nil, fmt.Errorf("unsupported flash page size: %d", r.pageSize)
	}

	if err := checkGeometry(r.size, r.pageSize, r.sectorSize); err != nil {
		port.Close()
		return nil, fmt.Errorf("adapter reports %v", err)
	}

	log.WithFields(log.Fields{
		"pageSize":   r.pageSize,
		"sectorSize": r.sectorSize,
		"size":       r.size,
	}).Info("remote flash attached")

	return r, nil
}

//
func (r *Remote) syncOnHello() error {

	log.Info("syncing with flash adapter")
	hello := make([]byte, len(helloAdapter))

	for !bytes.Equal(hello, helloAdapter) {
		shiftLeft(hello)
		if _, err := io.ReadFull(r.port, hello[len(hello)-1:]); err != nil {
			return err
		}
	}

	if _, err := r.port.Write(helloDaemon); err != nil {
		return fmt.Errorf("error sending daemon hello: %v", err)
	}

	log.Info("synced with flash adapter")
	return nil
}

//
func (r *Remote) Close() error {
	return r.port.Close()
}

//
func (r *Remote) PageSize() int {
	return r.pageSize
}

//
func (r *Remote) SectorSize() int {
	return r.sectorSize
}

//
func (r *Remote) Size() uint32 {
	return r.size
}

//
func (r *Remote) Erase(addr, length uint32) error {
	if err := r.exchange(CmdErase, addr, length, nil, nil); err != nil {
		return fmt.Errorf("%w: erasing %d bytes at 0x%08x: %v",
			ErrFlash, length, addr, err)
	}
	return nil
}

//
func (r *Remote) ProgramPage(addr uint32, buf []byte) error {
	if len(buf) > r.pageSize {
		return fmt.Errorf("%w: programming %d bytes, page size %d",
			ErrAlignment, len(buf), r.pageSize)
	}
	if err := r.exchange(
		CmdProgram, addr, uint32(len(buf)), buf, nil); err != nil {
		return fmt.Errorf("%w: programming page at 0x%08x: %v", ErrFlash, addr, err)
	}
	return nil
}

//
func (r *Remote) Read(addr uint32, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > maxTransfer {
			n = maxTransfer
		}
		if err := r.exchange(CmdRead, addr, uint32(n), nil, buf[:n]); err != nil {
			return fmt.Errorf("reading %d bytes at 0x%08x: %v", n, addr, err)
		}
		buf = buf[n:]
		addr += uint32(n)
	}
	return nil
}

//
func (r *Remote) IsErased(addr, length uint32) bool {
	flag := make([]byte, 1)
	if err := r.exchange(CmdCheck, addr, length, nil, flag); err != nil {
		log.Errorf("erased check at 0x%08x failed: %v", addr, err)
		return false
	}
	return flag[0] == 1
}

// exchange sends a command frame plus optional payload, and reads status and
// reply. reply needs to have the exact length of the expected reply data.
func (r *Remote) exchange(cmd byte, addr, length uint32, payload,
	reply []byte) error {

	r.mutex.Lock()
	defer r.mutex.Unlock()

	frame := make([]byte, frameLength+len(payload))
	frame[0] = cmd
	binary.LittleEndian.PutUint32(frame[4:], addr)
	binary.LittleEndian.PutUint32(frame[8:], length)
	copy(frame[frameLength:], payload)

	log.WithFields(log.Fields{
		"cmd":     string(cmd),
		"address": fmt.Sprintf("0x%08x", addr),
		"length":  length,
	}).Trace("remote flash command")

	if _, err := r.port.Write(frame); err != nil {
		return err
	}

	status := make([]byte, 1)
	if _, err := io.ReadFull(r.port, status); err != nil {
		return err
	}

	switch status[0] {
	case StatusOK:
	case StatusFailed:
		return fmt.Errorf("adapter reported failure for command '%c'", cmd)
	default:
		return fmt.Errorf("invalid status from adapter: 0x%02x", status[0])
	}

	if len(reply) > 0 {
		if _, err := io.ReadFull(r.port, reply); err != nil {
			return err
		}
	}

	return nil
}

//
func shiftLeft(buf []byte) {
	if len(buf) > 1 {
		for ix := 0; ix < len(buf)-1; ix++ {
			buf[ix] = buf[ix+1]
		}
	}
}
