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
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

/*
	Image is a simulated flash backed by an image file. Content is held in a
	Memory, and every erase or program is written through to the file and
	synced, so that the image reflects the flash content at any time, just
	like the real chip would after a power loss.
*/
type Image struct {
	*Memory
	file *os.File
}

// OpenImage opens the flash image at path. If the file doesn't exist, it is
// created with erased content. An existing image needs to have exactly the
// given size.
func OpenImage(path string, size uint32, pageSize, sectorSize int) (*Image, error) {

	mem, err := NewMemory(size, pageSize, sectorSize)
	if err != nil {
		return nil, err
	}

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}

	img := &Image{Memory: mem, file: fd}

	switch info.Size() {

	case 0:
		log.Infof("creating erased flash image %s with %d bytes", path, size)
		if err := img.writeThrough(0, size); err != nil {
			fd.Close()
			return nil, err
		}

	case int64(size):
		if _, err := io.ReadFull(fd, mem.data); err != nil {
			fd.Close()
			return nil, fmt.Errorf("error reading flash image: %v", err)
		}
		log.Debugf("loaded flash image %s", path)

	default:
		fd.Close()
		return nil, fmt.Errorf(
			"flash image %s has %d bytes, want %d", path, info.Size(), size)
	}

	return img, nil
}

//
func (i *Image) Erase(addr, length uint32) error {
	if err := i.Memory.Erase(addr, length); err != nil {
		return err
	}
	return i.writeThrough(addr, length)
}

//
func (i *Image) ProgramPage(addr uint32, buf []byte) error {
	if err := i.Memory.ProgramPage(addr, buf); err != nil {
		return err
	}
	return i.writeThrough(addr, uint32(len(buf)))
}

//
func (i *Image) Close() error {
	return i.file.Close()
}

//
func (i *Image) writeThrough(addr, length uint32) error {

	i.mutex.Lock()
	chunk := make([]byte, length)
	copy(chunk, i.data[addr:])
	i.mutex.Unlock()

	if _, err := i.file.WriteAt(chunk, int64(addr)); err != nil {
		return fmt.Errorf("%w: writing image: %v", ErrFlash, err)
	}
	return i.file.Sync()
}
