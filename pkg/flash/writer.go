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
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/parmstore/pkg/metrics"
)

/*
	Writer turns a stream of arbitrarily sized and aligned writes into page
	programs. Bytes are collected in a page buffer, and the buffer is programmed
	whenever a write moves on to another page, and when the write session ends.
	Parts of a page that were not written stay 0xff, so the target area has to
	be erased beforehand.

	A write session is enclosed by Begin and End, or Abort. The session holds
	the writer's lock, which guards the page buffer.
*/
type Writer struct {
	dev Programmer
	//
	buf     []byte
	page    uint32
	hasPage bool
	//
	next    uint32
	written bool
	//
	lock chan bool
}

//
func NewWriter(dev Programmer) *Writer {
	return &Writer{
		dev:  dev,
		buf:  make([]byte, dev.PageSize()),
		lock: make(chan bool, 1),
	}
}

// Begin starts a write session. It waits for the writer lock until ctx is
// done, and returns ErrLockFailed if the lock could not be acquired.
func (w *Writer) Begin(ctx context.Context) error {

	select {
	case w.lock <- true:
		log.Trace("flash writer locked")
	case <-ctx.Done():
		log.Debug("flash writer lock timed out")
		return ErrLockFailed
	}

	w.hasPage = false
	w.written = false
	w.next = 0

	return nil
}

/*
	Write places p at flash address addr. Whenever addr enters a page other than
	the current one, the current page is programmed first. If that fails, the
	page is dropped, so that no further attempt is made to program possibly
	torn data, and the error is returned right away.
*/
func (w *Writer) Write(addr uint32, p []byte) error {

	size := uint32(len(w.buf))

	for len(p) > 0 {

		page := addr - addr%size

		if !w.hasPage || page != w.page {
			if err := w.flush(); err != nil {
				return err
			}
			for ix := range w.buf {
				w.buf[ix] = 0xff
			}
			w.page = page
			w.hasPage = true
		}

		n := copy(w.buf[addr-page:], p)
		p = p[n:]
		addr += uint32(n)
	}

	return nil
}

/*
	End programs the partially filled current page, if any, and releases the
	lock. It returns the address right behind the last page programmed during
	this session. ok is false if nothing was programmed at all.
*/
func (w *Writer) End() (next uint32, ok bool, err error) {
	defer w.unlock()
	if err := w.flush(); err != nil {
		return 0, false, err
	}
	return w.next, w.written, nil
}

// Abort ends a write session without programming the current page.
func (w *Writer) Abort() {
	w.hasPage = false
	w.unlock()
}

//
func (w *Writer) flush() error {

	if !w.hasPage {
		return nil
	}

	if err := w.dev.ProgramPage(w.page, w.buf); err != nil {
		w.hasPage = false
		metrics.FlashErrors.Inc()
		return fmt.Errorf("%w: programming page at 0x%08x: %v", ErrFlash, w.page, err)
	}

	log.WithField("page", fmt.Sprintf("0x%08x", w.page)).Trace("page programmed")
	metrics.PagesProgrammed.Inc()

	w.hasPage = false
	w.next = w.page + uint32(len(w.buf))
	w.written = true

	return nil
}

//
func (w *Writer) unlock() {
	select {
	case <-w.lock:
		log.Trace("flash writer unlocked")
	default:
		log.Debug("flash writer was already unlocked")
	}
}
