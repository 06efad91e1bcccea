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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/parmstore/pkg/block"
	"github.com/xelalexv/parmstore/pkg/flash"
	"github.com/xelalexv/parmstore/pkg/metrics"
)

// lock acquires the store lock, waiting at most for the configured lock
// timeout.
func (s *Store) lock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.LockTimeout)
	defer cancel()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.WithField("timeout", s.config.LockTimeout).Warn(
			"could not acquire parameter store lock")
		return ErrLockFailed
	}
	log.Trace("parameter store locked")
	return nil
}

//
func (s *Store) unlock() {
	s.sem.Release(1)
	log.Trace("parameter store unlocked")
}

/*
	Save writes the current values of all entries without the restore-only
	flag to flash. See saveWithRedundancy for how that's done. On ErrLockFailed,
	the save can be retried. On any other error, the bank that was active
	before the save is still intact.
*/
func (s *Store) Save(ctx context.Context) error {

	logger := log.WithField("save", uuid.New().String())
	logger.Info("saving parameters")

	err := s.saveWithRedundancy(ctx, logger)

	switch {
	case err == nil:
		metrics.Saves.WithLabelValues("ok").Inc()
		logger.Info("parameters saved")
	case errors.Is(err, ErrLockFailed):
		metrics.Saves.WithLabelValues("lock_failed").Inc()
		logger.Warnf("parameter save not started: %v", err)
	default:
		metrics.Saves.WithLabelValues("error").Inc()
		logger.Errorf("parameter save failed: %v", err)
	}

	return err
}

/*
	saveWithRedundancy writes the parameter set twice, once into each bank.
	Every pass writes the bank that is currently not active, and makes it the
	active one on success. So when the second pass gets interrupted, the bank
	written by the first one is still complete and signed, and when the first
	pass fails, the other bank isn't touched at all.

	The store lock is taken for each pass separately.
*/
func (s *Store) saveWithRedundancy(ctx context.Context, logger *log.Entry) error {
	for pass := 1; pass <= 2; pass++ {
		if err := s.lock(ctx); err != nil {
			return err
		}
		err := s.savePass(ctx, logger.WithField("pass", pass))
		s.unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// savePass erases the next writable bank, streams all entries into it as
// tail-style blocks, and closes it with the end signature.
func (s *Store) savePass(ctx context.Context, logger *log.Entry) error {

	s.stateMu.RLock()
	ix := s.state.NextBank
	prev := s.state.Active
	s.stateMu.RUnlock()

	b := s.config.Banks[ix]
	logger = logger.WithField("bank", ix)

	logger.Debug("erasing bank")
	if err := s.dev.Erase(b.Base, b.Size); err != nil {
		metrics.FlashErrors.Inc()
		err = fmt.Errorf("%w: erasing bank %d: %v", ErrStore, ix, err)
		s.setReport(ix, BankUnknown, err)
		return err
	}

	// from here on, the bank's previous content is gone
	fail := func(err error) error {
		s.setReport(ix, s.classifyAbandoned(b), err)
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, s.config.LockTimeout)
	defer cancel()
	if err := s.writer.Begin(wctx); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrLockFailed, err))
	}

	bw := &bankWriter{
		w:    s.writer,
		addr: b.Base,
		end:  b.Base + b.Size - signatureBlockSize,
		crc:  block.Seed,
	}

	count := 0
	for _, e := range s.registry.Entries() {
		if e.Flags.Has(FlagRestoreOnly) {
			continue
		}
		if err := bw.writeBlock(e.Code, e.collect); err != nil {
			s.writer.Abort()
			return fail(fmt.Errorf("%w: writing entry %d to bank %d: %v",
				ErrStore, e.Code, ix, err))
		}
		count++
	}

	size := bw.addr - b.Base
	if size > math.MaxUint16 {
		s.writer.Abort()
		return fail(fmt.Errorf("%w: %d bytes of parameters exceed signature limit",
			ErrStore, size))
	}

	sig := &Signature{
		Application: s.config.Application,
		CRC:         bw.crc,
		Timestamp:   s.timestamp(prev),
		BankStart:   b.Base,
		BankSize:    uint16(size),
	}

	bw.end += signatureBlockSize
	if err := bw.writeBlock(CodeEndSignature,
		func(write func([]byte) error) error {
			return write(sig.Bytes())
		}); err != nil {
		s.writer.Abort()
		return fail(fmt.Errorf("%w: writing signature to bank %d: %v",
			ErrStore, ix, err))
	}

	if _, _, err := s.writer.End(); err != nil {
		return fail(fmt.Errorf("%w: finishing bank %d: %v", ErrStore, ix, err))
	}

	s.stateMu.Lock()
	s.state = State{
		Status:     StatusOK,
		NextBank:   1 - ix,
		ActiveBank: ix,
		Active:     sig,
	}
	s.reports[ix] = BankReport{Index: ix, Bank: b, State: BankValid,
		Blocks: count + 1, Signature: sig}
	state := s.state
	s.stateMu.Unlock()

	metrics.BankWrites.WithLabelValues(bankLabel(ix)).Inc()
	updateGauges(state)

	logger.WithFields(log.Fields{
		"entries":   count,
		"bytes":     size,
		"timestamp": sig.Timestamp,
	}).Debug("bank written")

	return nil
}

// setReport records the state of bank ix after a failed write or erase.
func (s *Store) setReport(ix int, state BankState, err error) {
	s.stateMu.Lock()
	s.reports[ix] = BankReport{Index: ix, Bank: s.config.Banks[ix],
		State: state, Reason: err.Error()}
	s.stateMu.Unlock()
}

// classifyAbandoned tells whether an erased bank that was abandoned during a
// save got programmed at all.
func (s *Store) classifyAbandoned(b Bank) BankState {
	if s.dev.IsErased(b.Base, b.Size) {
		return BankErased
	}
	return BankCorrupt
}

// timestamp returns the timestamp for a new signature. It's taken from the
// clock, but is always later than the previous signature's.
func (s *Store) timestamp(prev *Signature) uint32 {
	ts := s.config.Clock()
	if prev != nil && ts <= prev.Timestamp {
		ts = prev.Timestamp + 1
	}
	return ts
}

// bankWriter streams blocks into a bank through the chunked writer, keeping
// track of write address and running bank CRC.
type bankWriter struct {
	w    *flash.Writer
	addr uint32
	end  uint32
	crc  uint16
}

//
func (bw *bankWriter) write(p []byte) error {
	if uint64(bw.addr)+uint64(len(p)) > uint64(bw.end) {
		return fmt.Errorf("bank full at 0x%08x", bw.addr)
	}
	if err := bw.w.Write(bw.addr, p); err != nil {
		return err
	}
	bw.crc = block.CRC16(bw.crc, p)
	bw.addr += uint32(len(p))
	return nil
}

// writeBlock writes a tail-style block with the given code, and a payload
// streamed by collect.
func (bw *bankWriter) writeBlock(code int16,
	collect func(write func([]byte) error) error) error {

	h, err := block.TailBegin(code)
	if err != nil {
		return err
	}

	if err := collect(func(p []byte) error {
		if err := h.AddData(p); err != nil {
			return err
		}
		return bw.write(p)
	}); err != nil {
		return err
	}

	// a trailing header at an odd offset would be invisible to scanning
	if h.PayloadSize()%block.WordSize != 0 {
		return fmt.Errorf("%w: odd payload size %d",
			block.ErrInvalidSize, h.PayloadSize())
	}

	h.End()
	return bw.write(h.Bytes())
}

/*
	Restore erases both banks and resets all entries to their defaults. The
	application is then signalled that it needs to save and reset. If erasing
	fails, the store status is StatusError, and defaults are applied
	nevertheless.
*/
func (s *Store) Restore(ctx context.Context) error {

	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	log.Info("restoring factory parameters")

	var ret error
	var failed [2]error
	for ix, b := range s.config.Banks {
		if err := s.dev.Erase(b.Base, b.Size); err != nil {
			metrics.FlashErrors.Inc()
			log.WithField("bank", ix).Errorf("cannot erase bank: %v", err)
			failed[ix] = fmt.Errorf("%w: erasing bank %d: %v", ErrStore, ix, err)
			if ret == nil {
				ret = failed[ix]
			}
		}
	}

	state := State{Status: StatusErased, ActiveBank: -1}
	if ret != nil {
		state.Status = StatusError
	}

	s.stateMu.Lock()
	s.state = state
	for ix := range s.reports {
		r := BankReport{Index: ix, Bank: s.config.Banks[ix], State: BankErased}
		if failed[ix] != nil {
			r.State = BankUnknown
			r.Reason = failed[ix].Error()
		}
		s.reports[ix] = r
	}
	s.stateMu.Unlock()

	if err := s.applyDefaults(); err != nil && ret == nil {
		ret = err
	}

	metrics.Restores.Inc()
	updateGauges(state)
	s.signal()

	return ret
}

// ImmediateRestore resets all entries to their defaults without touching
// flash, and signals that the application needs to save and reset.
func (s *Store) ImmediateRestore(ctx context.Context) error {

	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	log.Info("applying factory defaults")

	err := s.applyDefaults()
	s.signal()
	return err
}

// applyDefaults sets all entries without the no-default flag to their
// defaults, and returns the first error encountered.
func (s *Store) applyDefaults() error {
	var ret error
	for _, e := range s.registry.Entries() {
		if err := e.applyDefault(); err != nil {
			log.WithField("code", e.Code).Errorf("cannot apply default: %v", err)
			if ret == nil {
				ret = err
			}
		}
	}
	return ret
}

//
func (s *Store) signal() {
	if s.config.Signaler != nil {
		s.config.Signaler.SaveAndResetRequired()
	} else {
		log.Warn("parameters reset to defaults, save and reset required")
	}
}

/*
	Export writes a snapshot of the current values of all entries that would
	be saved to w. The snapshot is a dense sequence of head-style blocks, with
	no end signature.
*/
func (s *Store) Export(w io.Writer) error {

	for _, e := range s.registry.Entries() {

		if e.Flags.Has(FlagRestoreOnly) {
			continue
		}

		var buf bytes.Buffer
		if err := e.collect(func(p []byte) error {
			_, err := buf.Write(p)
			return err
		}); err != nil {
			return fmt.Errorf("collecting entry %d: %v", e.Code, err)
		}

		h, err := block.NewHead(e.Code, buf.Bytes())
		if err != nil {
			return fmt.Errorf("encoding entry %d: %w", e.Code, err)
		}

		if _, err := w.Write(h.Bytes()); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

/*
	Import delivers the blocks of a snapshot written by Export to the
	registered entries, following the same rules as a full Load. It returns
	the number of delivered entries, and the first error encountered.
*/
func (s *Store) Import(data []byte) (int, error) {

	var ret error
	count := 0
	r := block.NewRegion(data, 0)

	for {
		blk, err := block.Enumerate(r)
		if err != nil {
			break
		}

		e := s.registry.Lookup(blk.Code)
		if e == nil || e.Flags.Has(FlagStoreOnly) {
			continue
		}

		if err := e.deliver(blk.Payload); err != nil {
			if ret == nil {
				ret = err
			}
			continue
		}
		count++
	}

	log.WithField("entries", count).Info("snapshot imported")
	return count, ret
}
