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
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

//
func newMemory(t *testing.T) *Memory {
	m, err := NewMemory(4096, 64, 1024)
	if err != nil {
		t.Fatalf("cannot create flash: %v", err)
	}
	return m
}

//
func TestMemoryNORSemantics(t *testing.T) {

	g := NewWithT(t)
	m := newMemory(t)

	g.Expect(m.IsErased(0, m.Size())).To(BeTrue())

	g.Expect(m.ProgramPage(64, []byte{0xf0, 0x0f})).To(Succeed())
	g.Expect(m.ProgramPage(64, []byte{0x3c, 0xff})).To(Succeed())

	buf := make([]byte, 3)
	g.Expect(m.Read(64, buf)).To(Succeed())
	g.Expect(buf).To(Equal([]byte{0x30, 0x0f, 0xff}))

	g.Expect(m.IsErased(0, 64)).To(BeTrue())
	g.Expect(m.IsErased(0, 1024)).To(BeFalse())
	g.Expect(m.Programs()).To(Equal(2))

	g.Expect(m.Erase(0, 1024)).To(Succeed())
	g.Expect(m.IsErased(0, m.Size())).To(BeTrue())
}

//
func TestMemoryAlignment(t *testing.T) {

	g := NewWithT(t)
	m := newMemory(t)

	g.Expect(m.ProgramPage(10, []byte{0})).To(MatchError(ErrAlignment))
	g.Expect(m.ProgramPage(0, make([]byte, 65))).To(MatchError(ErrAlignment))
	g.Expect(m.Erase(512, 1024)).To(MatchError(ErrAlignment))
	g.Expect(m.Erase(0, 8192)).To(MatchError(ErrOutOfRange))
	g.Expect(m.Read(4090, make([]byte, 8))).To(MatchError(ErrOutOfRange))
	g.Expect(m.IsErased(4090, 8)).To(BeFalse())

	_, err := NewMemory(1000, 64, 1024)
	g.Expect(err).To(HaveOccurred())
	_, err = NewMemory(4096, 100, 1024)
	g.Expect(err).To(HaveOccurred())
}

//
func TestWriterSpansPages(t *testing.T) {

	g := NewWithT(t)
	m := newMemory(t)
	w := NewWriter(m)

	data := make([]byte, 150)
	for ix := range data {
		data[ix] = byte(ix)
	}

	g.Expect(w.Begin(context.Background())).To(Succeed())
	g.Expect(w.Write(30, data[:10])).To(Succeed())
	g.Expect(w.Write(40, data[10:])).To(Succeed())
	g.Expect(m.Programs()).To(Equal(2)) // pages 0 and 64, 128 still pending

	next, ok, err := w.End()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(next).To(Equal(uint32(192)))
	g.Expect(m.Programs()).To(Equal(3))

	g.Expect(m.Bytes()[30:180]).To(Equal(data))
	g.Expect(m.IsErased(0, 30)).To(BeTrue())
	g.Expect(m.IsErased(180, 4096-180)).To(BeTrue())
}

//
func TestWriterNothingWritten(t *testing.T) {

	g := NewWithT(t)
	w := NewWriter(newMemory(t))

	g.Expect(w.Begin(context.Background())).To(Succeed())
	_, ok, err := w.End()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeFalse())
}

//
func TestWriterPoisonsOnFailure(t *testing.T) {

	g := NewWithT(t)
	m := newMemory(t)
	w := NewWriter(m)

	m.FailProgram = func(addr uint32) error {
		if addr == 64 {
			return errors.New("program failed")
		}
		return nil
	}

	g.Expect(w.Begin(context.Background())).To(Succeed())
	g.Expect(w.Write(60, make([]byte, 10))).To(Succeed())
	// moving on to page 128 flushes page 64, which fails
	g.Expect(w.Write(130, []byte{1})).To(MatchError(ErrFlash))

	// the failed page must not be programmed again
	m.FailProgram = nil
	_, ok, err := w.End()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeTrue()) // page 0 went through
	g.Expect(m.IsErased(64, 64)).To(BeTrue())
	g.Expect(m.IsErased(128, 64)).To(BeTrue())
}

//
func TestWriterLock(t *testing.T) {

	g := NewWithT(t)
	w := NewWriter(newMemory(t))

	g.Expect(w.Begin(context.Background())).To(Succeed())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g.Expect(w.Begin(ctx)).To(MatchError(ErrLockFailed))

	w.Abort()
	g.Expect(w.Begin(context.Background())).To(Succeed())
	_, _, err := w.End()
	g.Expect(err).NotTo(HaveOccurred())
}

//
func TestImagePersists(t *testing.T) {

	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "flash.img")

	img, err := OpenImage(path, 4096, 64, 1024)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(img.IsErased(0, 4096)).To(BeTrue())
	g.Expect(img.ProgramPage(128, []byte("persist"))).To(Succeed())
	g.Expect(img.Close()).To(Succeed())

	img, err = OpenImage(path, 4096, 64, 1024)
	g.Expect(err).NotTo(HaveOccurred())
	buf := make([]byte, 7)
	g.Expect(img.Read(128, buf)).To(Succeed())
	g.Expect(string(buf)).To(Equal("persist"))

	g.Expect(img.Erase(0, 1024)).To(Succeed())
	g.Expect(img.Close()).To(Succeed())

	img, err = OpenImage(path, 4096, 64, 1024)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(img.IsErased(0, 4096)).To(BeTrue())
	g.Expect(img.Close()).To(Succeed())

	_, err = OpenImage(path, 8192, 64, 1024)
	g.Expect(err).To(HaveOccurred())
}

// fakeAdapter serves the remote flash protocol on conn, backed by m.
func fakeAdapter(conn net.Conn, m *Memory) {

	defer conn.Close()

	conn.Write([]byte("xxhlof"))
	hello := make([]byte, 4)
	if _, err := io.ReadFull(conn, hello); err != nil || string(hello) != "hlod" {
		return
	}

	frame := make([]byte, frameLength)

	for {
		if _, err := io.ReadFull(conn, frame); err != nil {
			return
		}

		addr := binary.LittleEndian.Uint32(frame[4:])
		length := binary.LittleEndian.Uint32(frame[8:])
		var reply []byte
		var err error

		switch frame[0] {

		case CmdInfo:
			reply = make([]byte, 12)
			binary.LittleEndian.PutUint32(reply[0:], uint32(m.PageSize()))
			binary.LittleEndian.PutUint32(reply[4:], uint32(m.SectorSize()))
			binary.LittleEndian.PutUint32(reply[8:], m.Size())

		case CmdRead:
			reply = make([]byte, length)
			err = m.Read(addr, reply)

		case CmdProgram:
			data := make([]byte, length)
			if _, err := io.ReadFull(conn, data); err != nil {
				return
			}
			err = m.ProgramPage(addr, data)

		case CmdErase:
			err = m.Erase(addr, length)

		case CmdCheck:
			reply = []byte{0}
			if m.IsErased(addr, length) {
				reply[0] = 1
			}
		}

		if err != nil {
			conn.Write([]byte{StatusFailed})
			continue
		}
		conn.Write(append([]byte{StatusOK}, reply...))
	}
}

//
func TestRemote(t *testing.T) {

	g := NewWithT(t)

	m := newMemory(t)
	daemonEnd, adapterEnd := net.Pipe()
	go fakeAdapter(adapterEnd, m)

	r, err := NewRemote(daemonEnd)
	g.Expect(err).NotTo(HaveOccurred())
	defer r.Close()

	g.Expect(r.PageSize()).To(Equal(64))
	g.Expect(r.Size()).To(Equal(uint32(4096)))
	g.Expect(r.IsErased(0, 4096)).To(BeTrue())

	g.Expect(r.ProgramPage(64, []byte("remote"))).To(Succeed())
	g.Expect(r.IsErased(0, 4096)).To(BeFalse())
	g.Expect(r.ProgramPage(3, []byte("x"))).To(MatchError(ErrFlash))

	buf := make([]byte, 6)
	g.Expect(r.Read(64, buf)).To(Succeed())
	g.Expect(string(buf)).To(Equal("remote"))

	big := make([]byte, 2048)
	g.Expect(r.Read(0, big)).To(Succeed())
	g.Expect(big[64:70]).To(Equal([]byte("remote")))
	g.Expect(bytes.Count(big, []byte{0xff})).To(Equal(2048 - 6))

	g.Expect(r.Erase(0, 1024)).To(Succeed())
	g.Expect(r.IsErased(0, 4096)).To(BeTrue())

	// a writer session over the remote flash
	w := NewWriter(r)
	g.Expect(w.Begin(context.Background())).To(Succeed())
	g.Expect(w.Write(100, []byte("chunked over serial"))).To(Succeed())
	_, ok, err := w.End()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(m.Bytes()[100:119]).To(Equal([]byte("chunked over serial")))
}

// geometryAdapter syncs on conn, and answers the info query with the given
// geometry.
func geometryAdapter(conn net.Conn, pageSize, sectorSize, size uint32) {

	defer conn.Close()

	conn.Write([]byte("hlof"))
	hello := make([]byte, 4)
	if _, err := io.ReadFull(conn, hello); err != nil {
		return
	}

	frame := make([]byte, frameLength)
	if _, err := io.ReadFull(conn, frame); err != nil || frame[0] != CmdInfo {
		return
	}

	reply := make([]byte, 13)
	reply[0] = StatusOK
	binary.LittleEndian.PutUint32(reply[1:], pageSize)
	binary.LittleEndian.PutUint32(reply[5:], sectorSize)
	binary.LittleEndian.PutUint32(reply[9:], size)
	conn.Write(reply)
}

//
func TestRemoteGeometry(t *testing.T) {

	g := NewWithT(t)

	for name, geo := range map[string][3]uint32{
		"zero page":        {0, 1024, 4096},
		"page too large":   {2048, 4096, 8192},
		"zero sector":      {64, 0, 4096},
		"sector unaligned": {64, 1000, 4000},
		"zero size":        {64, 1024, 0},
		"size unaligned":   {64, 1024, 4000},
	} {
		daemonEnd, adapterEnd := net.Pipe()
		go geometryAdapter(adapterEnd, geo[0], geo[1], geo[2])
		_, err := NewRemote(daemonEnd)
		g.Expect(err).To(HaveOccurred(), name)
	}

	daemonEnd, adapterEnd := net.Pipe()
	go geometryAdapter(adapterEnd, 64, 1024, 4096)
	r, err := NewRemote(daemonEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(r.SectorSize()).To(Equal(1024))
	r.Close()
}
