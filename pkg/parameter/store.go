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
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/xelalexv/parmstore/pkg/block"
	"github.com/xelalexv/parmstore/pkg/flash"
	"github.com/xelalexv/parmstore/pkg/metrics"
)

// DefaultLockTimeout is the bounded wait for the store lock.
const DefaultLockTimeout = 1500 * time.Millisecond

// size of the end signature block, payload and trailing header
const signatureBlockSize = SignatureSize + block.HeaderSize

//
type Status int

const (
	StatusUninitialized Status = iota
	StatusErased
	StatusOK
	StatusError
)

//
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusErased:
		return "erased"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "<unknown>"
	}
}

//
type BankState int

const (
	BankUnknown BankState = iota
	BankErased
	BankValid
	// signature with wrong application type or failing bank CRC
	BankInvalidSignature
	// not erased, but no signature found
	BankCorrupt
)

//
func (s BankState) String() string {
	switch s {
	case BankUnknown:
		return "unknown"
	case BankErased:
		return "erased"
	case BankValid:
		return "valid"
	case BankInvalidSignature:
		return "invalid signature"
	case BankCorrupt:
		return "corrupt"
	default:
		return "<unknown>"
	}
}

//
type LoadOption int

const (
	LoadFull LoadOption = iota
	LoadCore
)

// Bank is one of the two flash regions a parameter set is saved to. Base and
// Size need to be aligned to the flash erase size.
type Bank struct {
	Base uint32
	Size uint32
}

// Signaler is notified whenever RAM parameters were reset to defaults, and
// the application needs to save and reset.
type Signaler interface {
	SaveAndResetRequired()
}

//
type Config struct {
	Application Application
	Banks       [2]Bank
	// bounded wait for the store lock, DefaultLockTimeout if zero
	LockTimeout time.Duration
	// source of signature timestamps, Unix time if nil
	Clock    func() uint32
	Signaler Signaler
}

/*
	State is the store state. NextBank is the bank receiving the next save. It
	is always the complement of ActiveBank, the bank holding the
	authoritative signature Active. ActiveBank is -1 while there is none.
*/
type State struct {
	Status     Status
	NextBank   int
	ActiveBank int
	Active     *Signature
}

// BankReport describes what the last verification found in a bank.
type BankReport struct {
	Index     int
	Bank      Bank
	State     BankState
	Blocks    int
	Signature *Signature
	Reason    string
}

//
func (r *BankReport) String() string {
	ret := fmt.Sprintf("bank %d  0x%08x + %6d bytes  %-17s  %3d blocks",
		r.Index, r.Bank.Base, r.Bank.Size, r.State, r.Blocks)
	if r.Signature != nil {
		ret += "  " + r.Signature.String()
	}
	if r.Reason != "" {
		ret += "  (" + r.Reason + ")"
	}
	return ret
}

/*
	Store is the redundant parameter store. It keeps the registered entries in
	one of two flash banks, each closed by an end signature. Save writes the
	inactive bank, and does so twice, so that at any point in time at least
	one bank holds a complete, signed parameter set.

	Save, Restore, and ImmediateRestore are serialized by the store lock.
	Verify and Load are meant to be called at boot, and don't take it.
*/
type Store struct {
	dev      flash.Device
	writer   *flash.Writer
	registry *Registry
	config   Config
	sem      *semaphore.Weighted
	//
	state   State
	reports [2]BankReport
	stateMu sync.RWMutex
}

// NewStore creates a store for the entries in registry, on flash device dev.
func NewStore(dev flash.Device, registry *Registry, cfg Config) (*Store, error) {

	for ix, b := range cfg.Banks {
		if b.Size < signatureBlockSize {
			return nil, fmt.Errorf("bank %d too small: %d bytes", ix, b.Size)
		}
		if uint64(b.Base)+uint64(b.Size) > uint64(dev.Size()) {
			return nil, fmt.Errorf(
				"bank %d at 0x%08x + %d bytes exceeds flash size %d",
				ix, b.Base, b.Size, dev.Size())
		}
	}

	b0, b1 := cfg.Banks[0], cfg.Banks[1]
	if b0.Base < b1.Base+b1.Size && b1.Base < b0.Base+b0.Size {
		return nil, fmt.Errorf("banks overlap")
	}

	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	if cfg.Clock == nil {
		cfg.Clock = func() uint32 { return uint32(time.Now().Unix()) }
	}

	s := &Store{
		dev:      dev,
		writer:   flash.NewWriter(dev),
		registry: registry,
		config:   cfg,
		sem:      semaphore.NewWeighted(1),
		state:    State{ActiveBank: -1},
	}

	for ix := range s.reports {
		s.reports[ix] = BankReport{Index: ix, Bank: cfg.Banks[ix]}
	}

	return s, nil
}

//
func (s *Store) Registry() *Registry {
	return s.registry
}

//
func (s *Store) Application() Application {
	return s.config.Application
}

// State returns a copy of the current store state.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	ret := s.state
	if ret.Active != nil {
		sig := *ret.Active
		ret.Active = &sig
	}
	return ret
}

// Banks returns the reports of the last verification.
func (s *Store) Banks() []BankReport {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	ret := make([]BankReport, len(s.reports))
	copy(ret, s.reports[:])
	return ret
}

/*
	Verify classifies both banks and elects the authoritative one. If both
	banks are erased, the status is StatusErased and bank 0 receives the next
	save. Otherwise, every end signature found in either bank is checked for
	application type and bank CRC, and the valid one with the highest
	timestamp wins. On equal timestamps, the lower bank wins. If there is no
	valid signature, the status is StatusError, an error describing the bank
	states is returned, and as with erased banks, the next save goes to bank 0.
*/
func (s *Store) Verify() (Status, error) {

	var reports [2]BankReport
	for ix := range reports {
		reports[ix] = s.verifyBank(ix)
		log.WithFields(log.Fields{
			"bank":   ix,
			"state":  reports[ix].State,
			"blocks": reports[ix].Blocks,
		}).Debug("bank verified")
	}

	state := State{ActiveBank: -1}
	var err error

	best := -1
	for ix := range reports {
		if sig := reports[ix].Signature; sig != nil {
			if best < 0 || sig.Timestamp > reports[best].Signature.Timestamp {
				best = ix
			}
		}
	}

	switch {

	case reports[0].State == BankErased && reports[1].State == BankErased:
		state.Status = StatusErased

	case best >= 0:
		state.Status = StatusOK
		state.ActiveBank = best
		state.Active = reports[best].Signature
		state.NextBank = 1 - best

	default:
		state.Status = StatusError
		err = fmt.Errorf("%w: no valid signature, bank 0 %s, bank 1 %s",
			ErrStore, reports[0].State, reports[1].State)
		log.WithFields(log.Fields{
			"bank0": reports[0].State,
			"bank1": reports[1].State,
		}).Error("parameter flash holds no valid parameter set")
	}

	s.stateMu.Lock()
	s.state = state
	s.reports = reports
	s.stateMu.Unlock()

	metrics.Verifies.WithLabelValues(state.Status.String()).Inc()
	updateGauges(state)

	log.WithFields(log.Fields{
		"status": state.Status,
		"active": state.ActiveBank,
	}).Info("parameter store verified")

	return state.Status, err
}

//
func (s *Store) verifyBank(ix int) BankReport {

	b := s.config.Banks[ix]
	rep := BankReport{Index: ix, Bank: b}

	if s.dev.IsErased(b.Base, b.Size) {
		rep.State = BankErased
		return rep
	}

	rep.State = BankCorrupt

	buf, err := s.readBank(ix)
	if err != nil {
		rep.Reason = err.Error()
		return rep
	}

	r := block.NewRegion(buf, b.Base)

	for {
		blk, err := block.Enumerate(r)
		if err != nil {
			break
		}

		rep.Blocks++
		if blk.Code != CodeEndSignature {
			continue
		}

		sig, err := s.checkSignature(buf, b, &blk)
		if err != nil {
			log.WithField("bank", ix).Warnf("rejecting signature: %v", err)
			if rep.State != BankValid {
				rep.State = BankInvalidSignature
				rep.Reason = err.Error()
			}
			continue
		}

		if rep.Signature == nil || sig.Timestamp > rep.Signature.Timestamp {
			rep.Signature = sig
			rep.State = BankValid
			rep.Reason = ""
		}
	}

	return rep
}

// checkSignature decodes the end signature in blk, found in bank b with
// content buf, and checks application type and bank CRC.
func (s *Store) checkSignature(buf []byte, b Bank, blk *block.Block) (
	*Signature, error) {

	sig, err := parseSignature(blk.Payload)
	if err != nil {
		return nil, err
	}

	if sig.Type != s.config.Application.Type {
		return nil, fmt.Errorf("application type %d, want %d",
			sig.Type, s.config.Application.Type)
	}

	end := uint64(sig.BankStart) + uint64(sig.BankSize)
	if sig.BankStart < b.Base || end > uint64(blk.PayloadAddress) {
		return nil, fmt.Errorf("signed area 0x%08x + %d outside of bank",
			sig.BankStart, sig.BankSize)
	}

	start := sig.BankStart - b.Base
	if crc := block.CRC16(block.Seed,
		buf[start:start+uint32(sig.BankSize)]); crc != sig.CRC {
		return nil, fmt.Errorf("bank CRC 0x%04x, signature says 0x%04x",
			crc, sig.CRC)
	}

	return sig, nil
}

//
func (s *Store) readBank(ix int) ([]byte, error) {
	b := s.config.Banks[ix]
	buf := make([]byte, b.Size)
	if err := s.dev.Read(b.Base, buf); err != nil {
		return nil, fmt.Errorf("%w: reading bank %d: %v", ErrStore, ix, err)
	}
	return buf, nil
}

// signedArea reads the area of the active bank covered by the active
// signature, and checks it against the signature's CRC.
func (s *Store) signedArea() ([]byte, uint32, error) {

	state := s.State()
	if state.Status != StatusOK || state.Active == nil {
		return nil, 0, fmt.Errorf("%w: no valid parameter set, status %s",
			ErrStore, state.Status)
	}

	sig := state.Active
	buf := make([]byte, sig.BankSize)
	if err := s.dev.Read(sig.BankStart, buf); err != nil {
		return nil, 0, fmt.Errorf("%w: reading bank %d: %v",
			ErrStore, state.ActiveBank, err)
	}

	if crc := block.CRC16(block.Seed, buf); crc != sig.CRC {
		return nil, 0, fmt.Errorf("%w: CRC mismatch in bank %d",
			ErrStore, state.ActiveBank)
	}

	return buf, sig.BankStart, nil
}

/*
	Load delivers the content of the active bank to the registered entries.
	Store-only entries are skipped, and with LoadCore, everything that isn't
	flagged core. Blocks without a registered entry are skipped silently. All
	blocks are processed even if delivery fails for some, and the first
	error is returned.
*/
func (s *Store) Load(opt LoadOption) error {

	buf, base, err := s.signedArea()
	if err != nil {
		return err
	}

	var ret error
	loaded := 0
	r := block.NewRegion(buf, base)

	for {
		blk, err := block.Enumerate(r)
		if err != nil {
			break
		}

		e := s.registry.Lookup(blk.Code)
		if e == nil || e.Flags.Has(FlagStoreOnly) {
			continue
		}
		if opt == LoadCore && !e.Flags.Has(FlagCore) {
			continue
		}

		if err := e.deliver(blk.Payload); err != nil {
			log.WithField("code", blk.Code).Errorf("cannot load entry: %v", err)
			if ret == nil {
				ret = err
			}
			continue
		}
		loaded++
	}

	log.WithFields(log.Fields{
		"loaded": loaded,
		"core":   opt == LoadCore,
	}).Info("parameters loaded")

	return ret
}

// Value returns a copy of the current value of the entry with the given code.
func (s *Store) Value(code int16) ([]byte, error) {

	e := s.registry.Lookup(code)
	if e == nil {
		return nil, fmt.Errorf("%w: no entry with code %d", ErrInvalidEntry, code)
	}

	if e.Flags.Has(FlagCallback) && e.Collect == nil {
		return nil, fmt.Errorf("%w: entry %d cannot be read", ErrInvalidEntry, code)
	}

	var buf bytes.Buffer
	err := e.collect(func(p []byte) error {
		_, err := buf.Write(p)
		return err
	})
	return buf.Bytes(), err
}

// SetValue delivers p to the entry with the given code.
func (s *Store) SetValue(code int16, p []byte) error {
	e := s.registry.Lookup(code)
	if e == nil {
		return fmt.Errorf("%w: no entry with code %d", ErrInvalidEntry, code)
	}
	return e.deliver(p)
}

// Dump writes all blocks found in bank ix to w.
func (s *Store) Dump(w io.Writer, ix int) error {

	if ix < 0 || ix >= len(s.config.Banks) {
		return fmt.Errorf("no bank %d", ix)
	}

	buf, err := s.readBank(ix)
	if err != nil {
		return err
	}

	b := s.config.Banks[ix]
	io.WriteString(w, fmt.Sprintf("BANK %d: 0x%08x + %d bytes\n",
		ix, b.Base, b.Size))

	r := block.NewRegion(buf, b.Base)
	count := 0

	for {
		blk, err := block.Enumerate(r)
		if err != nil {
			break
		}
		blk.Emit(w)
		count++
	}

	io.WriteString(w, fmt.Sprintf("\n%d blocks\n", count))
	return nil
}

//
func updateGauges(state State) {
	metrics.ActiveBank.Set(float64(state.ActiveBank))
	if state.Active != nil {
		metrics.SignatureTimestamp.Set(float64(state.Active.Timestamp))
	} else {
		metrics.SignatureTimestamp.Set(0)
	}
}

//
func bankLabel(ix int) string {
	return strconv.Itoa(ix)
}
