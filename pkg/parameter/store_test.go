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
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/parmstore/pkg/block"
	"github.com/xelalexv/parmstore/pkg/flash"
)

const bankSize = 2048

// fixture is an application with a typical mix of registered entries
type fixture struct {
	mem      *flash.Memory
	speed    []byte
	gain     []byte
	table    []byte // as delivered
	tableSrc []byte // as collected
	counter  []byte
	factory  []byte
	calib    []byte
	signals  int
}

//
func newFixture(t *testing.T) *fixture {
	mem, err := flash.NewMemory(4*bankSize, 64, 1024)
	if err != nil {
		t.Fatalf("cannot create flash: %v", err)
	}
	return &fixture{
		mem:      mem,
		speed:    make([]byte, 4),
		gain:     make([]byte, 6),
		tableSrc: make([]byte, 40),
		counter:  make([]byte, 2),
		factory:  make([]byte, 2),
		calib:    make([]byte, 2),
	}
}

//
func (f *fixture) SaveAndResetRequired() {
	f.signals++
}

//
func (f *fixture) entries() []Entry {
	return []Entry{
		{Code: 1, Name: "speed", Flags: FlagCore, Data: f.speed,
			Default: []byte{1, 2, 3, 4}},
		{Code: 2, Name: "gain", Flags: FlagIndirect, Ref: &f.gain,
			Default: []byte{9}},
		{Code: 3, Name: "table", Flags: FlagCallback,
			Deliver: func(p []byte) error {
				f.table = append([]byte{}, p...)
				return nil
			},
			Collect: func(write func([]byte) error) error {
				if err := write(f.tableSrc[:10]); err != nil {
					return err
				}
				return write(f.tableSrc[10:])
			},
			Default: []byte{0xde, 0xad}},
		{Code: 4, Name: "counter", Flags: FlagStoreOnly, Data: f.counter},
		{Code: 5, Name: "factory", Flags: FlagRestoreOnly, Data: f.factory,
			Default: []byte{7, 7}},
		{Code: 6, Name: "calib", Flags: FlagNoDefault, Data: f.calib},
	}
}

//
func (f *fixture) store(t *testing.T, app uint16, clock uint32) *Store {
	s := newStore(t, f.mem, f.entries(), app, clock)
	s.config.Signaler = f
	return s
}

//
func newStore(t *testing.T, mem *flash.Memory, entries []Entry, app uint16,
	clock uint32) *Store {

	reg, err := NewRegistry(entries)
	if err != nil {
		t.Fatalf("invalid registry: %v", err)
	}

	s, err := NewStore(mem, reg, Config{
		Application: Application{Type: app, VersionMajor: 1, VersionMinor: 2},
		Banks:       [2]Bank{{Base: 0, Size: bankSize}, {Base: bankSize, Size: bankSize}},
		LockTimeout: 50 * time.Millisecond,
		Clock:       func() uint32 { return clock },
	})
	if err != nil {
		t.Fatalf("cannot create store: %v", err)
	}

	return s
}

//
func (f *fixture) fill(v byte) {
	for _, b := range [][]byte{f.speed, f.gain, f.tableSrc, f.counter,
		f.factory, f.calib} {
		copy(b, pattern(v, len(b)))
	}
	f.table = nil
}

//
func (f *fixture) clear() {
	for _, b := range [][]byte{f.speed, f.gain, f.tableSrc, f.counter,
		f.factory, f.calib} {
		for ix := range b {
			b[ix] = 0
		}
	}
	f.table = nil
}

//
func pattern(v byte, n int) []byte {
	ret := make([]byte, n)
	for ix := range ret {
		ret[ix] = v + byte(ix)
	}
	return ret
}

//
func testLogger(t *testing.T) *log.Entry {
	return log.WithField("test", t.Name())
}

//
func TestNewStoreValidation(t *testing.T) {

	g := NewWithT(t)

	mem, _ := flash.NewMemory(4096, 64, 1024)
	reg, _ := NewRegistry(nil)

	for _, banks := range [][2]Bank{
		{{0, 2048}, {1024, 2048}},
		{{0, 2048}, {2048, 4096}},
		{{0, 16}, {2048, 2048}},
	} {
		_, err := NewStore(mem, reg, Config{Banks: banks})
		g.Expect(err).To(HaveOccurred())
	}

	s, err := NewStore(mem, reg, Config{Banks: [2]Bank{{2048, 2048}, {0, 2048}}})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(s.config.LockTimeout).To(Equal(DefaultLockTimeout))
	g.Expect(s.State().Status).To(Equal(StatusUninitialized))
	g.Expect(s.State().ActiveBank).To(Equal(-1))
}

//
func TestErasedBoot(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	status, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusErased))
	g.Expect(s.State().NextBank).To(Equal(0))
	g.Expect(s.State().Active).To(BeNil())

	for _, r := range s.Banks() {
		g.Expect(r.State).To(Equal(BankErased))
	}

	g.Expect(s.Load(LoadFull)).To(MatchError(ErrStore))
}

//
func TestSaveVerifyLoad(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	_, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())

	f.fill(0x10)
	g.Expect(s.Save(context.Background())).To(Succeed())

	state := s.State()
	g.Expect(state.Status).To(Equal(StatusOK))
	g.Expect(state.ActiveBank).To(Equal(1))
	g.Expect(state.NextBank).To(Equal(0))
	g.Expect(state.Active.Timestamp).To(Equal(uint32(1001)))

	f.clear()

	s = f.store(t, 1, 2000)
	status, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(s.State().ActiveBank).To(Equal(1))
	g.Expect(s.State().NextBank).To(Equal(0))

	banks := s.Banks()
	g.Expect(banks[0].State).To(Equal(BankValid))
	g.Expect(banks[0].Signature.Timestamp).To(Equal(uint32(1000)))
	g.Expect(banks[1].State).To(Equal(BankValid))
	g.Expect(banks[1].Blocks).To(Equal(6))
	g.Expect(banks[1].Signature.Application).To(Equal(
		Application{Type: 1, VersionMajor: 1, VersionMinor: 2}))
	g.Expect(banks[1].Signature.BankStart).To(Equal(uint32(bankSize)))

	g.Expect(s.Load(LoadFull)).To(Succeed())

	g.Expect(f.speed).To(Equal(pattern(0x10, 4)))
	g.Expect(f.gain).To(Equal(pattern(0x10, 6)))
	g.Expect(f.table).To(Equal(pattern(0x10, 40)))
	g.Expect(f.calib).To(Equal(pattern(0x10, 2)))
	// store-only entries are never loaded, restore-only never saved
	g.Expect(f.counter).To(Equal([]byte{0, 0}))
	g.Expect(f.factory).To(Equal([]byte{0, 0}))

	g.Expect(f.signals).To(Equal(0))
}

//
func TestLoadCore(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x20)
	g.Expect(s.Save(context.Background())).To(Succeed())
	f.clear()

	g.Expect(s.Load(LoadCore)).To(Succeed())
	g.Expect(f.speed).To(Equal(pattern(0x20, 4)))
	g.Expect(f.gain).To(Equal(make([]byte, 6)))
	g.Expect(f.table).To(BeNil())
}

//
func TestRotationSafety(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x30)
	g.Expect(s.Save(context.Background())).To(Succeed())
	g.Expect(s.State().NextBank).To(Equal(0))

	// second save gets interrupted after erasing bank 0 and programming its
	// first page, well before the end signature
	f.mem.FailProgram = func(addr uint32) error {
		if addr >= 64 && addr < bankSize {
			return errors.New("power loss")
		}
		return nil
	}

	f.fill(0x40)
	err := s.Save(context.Background())
	g.Expect(err).To(MatchError(ErrStore))

	// the store still considers the first save authoritative
	g.Expect(s.State().ActiveBank).To(Equal(1))
	g.Expect(s.State().NextBank).To(Equal(0))

	// and reports the torn bank without its old signature
	banks := s.Banks()
	g.Expect(banks[0].State).To(Equal(BankCorrupt))
	g.Expect(banks[0].Signature).To(BeNil())
	g.Expect(banks[0].Reason).To(ContainSubstring("power loss"))
	g.Expect(banks[1].State).To(Equal(BankValid))

	f.mem.FailProgram = nil
	f.clear()

	s = f.store(t, 1, 1000)
	status, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(s.State().ActiveBank).To(Equal(1))
	g.Expect(s.Banks()[0].State).To(Equal(BankCorrupt))

	g.Expect(s.Load(LoadFull)).To(Succeed())
	g.Expect(f.speed).To(Equal(pattern(0x30, 4)))
	g.Expect(f.table).To(Equal(pattern(0x30, 40)))

	// a retry writes bank 0 again, and succeeds
	f.fill(0x40)
	g.Expect(s.Save(context.Background())).To(Succeed())
	g.Expect(s.State().ActiveBank).To(Equal(1))
	g.Expect(s.State().Active.Timestamp).To(Equal(uint32(1003)))
}

//
func TestSecondPassFailure(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.mem.FailProgram = func(addr uint32) error {
		if addr >= bankSize {
			return errors.New("program failed")
		}
		return nil
	}

	f.fill(0x50)
	g.Expect(s.Save(context.Background())).To(MatchError(ErrStore))
	g.Expect(s.State().ActiveBank).To(Equal(0))
	g.Expect(s.State().NextBank).To(Equal(1))

	banks := s.Banks()
	g.Expect(banks[0].State).To(Equal(BankValid))
	g.Expect(banks[1].State).To(Equal(BankErased))
	g.Expect(banks[1].Reason).To(ContainSubstring("program failed"))

	f.mem.FailProgram = nil
	f.clear()

	s = f.store(t, 1, 1000)
	status, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(s.State().ActiveBank).To(Equal(0))
	g.Expect(s.Banks()[1].State).To(Equal(BankErased))

	g.Expect(s.Load(LoadFull)).To(Succeed())
	g.Expect(f.gain).To(Equal(pattern(0x50, 6)))
}

//
func TestEraseFailure(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.mem.FailErase = func(addr uint32) error {
		return errors.New("erase failed")
	}

	g.Expect(s.Save(context.Background())).To(MatchError(ErrStore))
	g.Expect(f.mem.Programs()).To(Equal(0))
	g.Expect(s.State().Status).To(Equal(StatusUninitialized))

	r := s.Banks()[0]
	g.Expect(r.State).To(Equal(BankUnknown))
	g.Expect(r.Reason).To(ContainSubstring("erase failed"))
}

//
func TestTimestampTieBreak(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	ctx := context.Background()
	s := f.store(t, 1, 1000)

	// bank 0, bank 1, and bank 0 again, the latter with the highest timestamp
	for pass := 0; pass < 3; pass++ {
		g.Expect(s.savePass(ctx, testLogger(t))).To(Succeed())
	}
	g.Expect(s.State().ActiveBank).To(Equal(0))

	v := f.store(t, 1, 1000)
	_, err := v.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.State().ActiveBank).To(Equal(0))
	g.Expect(v.State().Active.Timestamp).To(Equal(uint32(1002)))
	g.Expect(v.State().NextBank).To(Equal(1))

	// equal timestamps, the lower bank wins
	f.mem.Erase(0, 2*bankSize)
	s = f.store(t, 1, 1000)
	g.Expect(s.savePass(ctx, testLogger(t))).To(Succeed())
	s.state = State{NextBank: 1, ActiveBank: -1}
	g.Expect(s.savePass(ctx, testLogger(t))).To(Succeed())

	v = f.store(t, 1, 1000)
	_, err = v.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Banks()[0].Signature.Timestamp).To(Equal(uint32(1000)))
	g.Expect(v.Banks()[1].Signature.Timestamp).To(Equal(uint32(1000)))
	g.Expect(v.State().ActiveBank).To(Equal(0))
}

//
func TestApplicationTypeRejection(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	ctx := context.Background()

	g.Expect(f.store(t, 1, 1000).Save(ctx)).To(Succeed())

	s := f.store(t, 2, 1000)
	status, err := s.Verify()
	g.Expect(err).To(MatchError(ErrStore))
	g.Expect(status).To(Equal(StatusError))
	for _, r := range s.Banks() {
		g.Expect(r.State).To(Equal(BankInvalidSignature))
	}

	// a foreign signature in bank 1 with a much later timestamp
	foreign := f.store(t, 2, 5000)
	foreign.state = State{NextBank: 1, ActiveBank: -1}
	g.Expect(foreign.savePass(ctx, testLogger(t))).To(Succeed())

	s = f.store(t, 1, 1000)
	status, err = s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(s.State().ActiveBank).To(Equal(0))
	g.Expect(s.Banks()[1].State).To(Equal(BankInvalidSignature))
}

//
func TestBankCRCMismatch(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)

	f.fill(0x60)
	s := f.store(t, 1, 1000)
	g.Expect(s.Save(context.Background())).To(Succeed())

	// first payload byte in bank 1
	f.mem.Bytes()[bankSize] ^= 0x01

	g.Expect(s.Load(LoadFull)).To(MatchError(ErrStore))

	v := f.store(t, 1, 1000)
	status, err := v.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(v.State().ActiveBank).To(Equal(0))
	g.Expect(v.Banks()[1].State).To(Equal(BankInvalidSignature))

	// both banks damaged
	f.mem.Bytes()[0] ^= 0x01
	status, err = v.Verify()
	g.Expect(err).To(MatchError(ErrStore))
	g.Expect(status).To(Equal(StatusError))
	g.Expect(v.State().NextBank).To(Equal(0))
	g.Expect(v.State().ActiveBank).To(Equal(-1))

	// the next save starts over in bank 0, and then rotates to bank 1
	g.Expect(v.savePass(context.Background(), testLogger(t))).To(Succeed())
	g.Expect(v.Banks()[0].State).To(Equal(BankValid))
	status, err = v.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(v.State().ActiveBank).To(Equal(0))
	g.Expect(v.State().NextBank).To(Equal(1))

	// not erased, but nothing recognizable
	f.mem.Erase(0, 2*bankSize)
	f.mem.ProgramPage(0, []byte{0, 0, 0, 0})
	status, _ = v.Verify()
	g.Expect(status).To(Equal(StatusError))
	g.Expect(v.Banks()[0].State).To(Equal(BankCorrupt))
	g.Expect(v.Banks()[1].State).To(Equal(BankErased))
}

//
func TestRestore(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x70)
	g.Expect(s.Save(context.Background())).To(Succeed())

	g.Expect(s.Restore(context.Background())).To(Succeed())
	g.Expect(f.signals).To(Equal(1))
	g.Expect(f.mem.IsErased(0, 2*bankSize)).To(BeTrue())

	state := s.State()
	g.Expect(state.Status).To(Equal(StatusErased))
	g.Expect(state.Active).To(BeNil())
	g.Expect(state.NextBank).To(Equal(0))

	g.Expect(f.speed).To(Equal([]byte{1, 2, 3, 4}))
	g.Expect(f.gain).To(Equal([]byte{9, 0, 0, 0, 0, 0}))
	g.Expect(f.table).To(Equal([]byte{0xde, 0xad}))
	g.Expect(f.counter).To(Equal([]byte{0, 0}))
	g.Expect(f.factory).To(Equal([]byte{7, 7}))
	g.Expect(f.calib).To(Equal(pattern(0x70, 2)))

	status, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusErased))
}

//
func TestRestoreEraseFailure(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x70)
	g.Expect(s.Save(context.Background())).To(Succeed())

	// only bank 1 refuses to be erased, and keeps its signature
	f.mem.FailErase = func(addr uint32) error {
		if addr >= bankSize {
			return errors.New("erase failed")
		}
		return nil
	}

	err := s.Restore(context.Background())
	g.Expect(err).To(MatchError(ErrStore))
	g.Expect(err.Error()).To(ContainSubstring("erasing bank 1"))
	g.Expect(s.State().Status).To(Equal(StatusError))
	g.Expect(f.signals).To(Equal(1))
	g.Expect(f.speed).To(Equal([]byte{1, 2, 3, 4}))

	banks := s.Banks()
	g.Expect(banks[0].State).To(Equal(BankErased))
	g.Expect(banks[0].Reason).To(BeEmpty())
	g.Expect(banks[1].State).To(Equal(BankUnknown))
	g.Expect(banks[1].Reason).To(ContainSubstring("erase failed"))

	f.mem.FailErase = nil
	status, err := s.Verify()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(StatusOK))
	g.Expect(s.State().ActiveBank).To(Equal(1))
}

//
func TestImmediateRestore(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x70)
	g.Expect(s.Save(context.Background())).To(Succeed())
	before := append([]byte{}, f.mem.Bytes()...)

	g.Expect(s.ImmediateRestore(context.Background())).To(Succeed())
	g.Expect(f.signals).To(Equal(1))
	g.Expect(f.mem.Bytes()).To(Equal(before))
	g.Expect(s.State().Status).To(Equal(StatusOK))

	g.Expect(f.speed).To(Equal([]byte{1, 2, 3, 4}))
	g.Expect(f.factory).To(Equal([]byte{7, 7}))
	g.Expect(f.calib).To(Equal(pattern(0x70, 2)))
}

//
func TestLockTimeout(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)
	ctx := context.Background()

	g.Expect(s.sem.Acquire(ctx, 1)).To(Succeed())

	g.Expect(s.Save(ctx)).To(MatchError(ErrLockFailed))
	g.Expect(s.Restore(ctx)).To(MatchError(ErrLockFailed))
	g.Expect(s.ImmediateRestore(ctx)).To(MatchError(ErrLockFailed))
	g.Expect(f.mem.Programs()).To(Equal(0))
	g.Expect(f.signals).To(Equal(0))

	s.sem.Release(1)
	g.Expect(s.Save(ctx)).To(Succeed())
}

//
func TestCallbackLengths(t *testing.T) {

	g := NewWithT(t)
	mem, _ := flash.NewMemory(4*bankSize, 64, 1024)

	var short []byte
	plain := []byte{5, 6}
	four := func(write func([]byte) error) error {
		return write([]byte{1, 2, 3, 4})
	}

	s := newStore(t, mem, []Entry{
		{Code: 1, Flags: FlagCallback, Length: 8, Collect: four,
			Deliver: func(p []byte) error { return nil }},
		{Code: 2, Flags: FlagCallback, Length: 2, Collect: four,
			Deliver: func(p []byte) error {
				short = append([]byte{}, p...)
				return nil
			}},
		{Code: 3, Data: plain},
	}, 1, 1000)

	g.Expect(s.Save(context.Background())).To(Succeed())
	plain[0], plain[1] = 0, 0

	err := s.Load(LoadFull)
	g.Expect(err).To(MatchError(block.ErrInvalidSize))
	g.Expect(short).To(Equal([]byte{1, 2}))
	g.Expect(plain).To(Equal([]byte{5, 6}))
}

//
func TestIndirectTooSmall(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x11)
	g.Expect(s.Save(context.Background())).To(Succeed())

	f.gain = make([]byte, 2)
	g.Expect(s.Load(LoadFull)).To(MatchError(block.ErrInvalidSize))
	g.Expect(f.speed).To(Equal(pattern(0x11, 4)))
}

//
func TestBankFull(t *testing.T) {

	g := NewWithT(t)
	mem, _ := flash.NewMemory(4*bankSize, 64, 1024)

	s := newStore(t, mem, []Entry{
		{Code: 1, Data: make([]byte, 1000)},
		{Code: 2, Data: make([]byte, 1100)},
	}, 1, 1000)

	err := s.Save(context.Background())
	g.Expect(err).To(MatchError(ErrStore))
	g.Expect(err.Error()).To(ContainSubstring("bank full"))
	g.Expect(s.State().Active).To(BeNil())
	g.Expect(s.State().NextBank).To(Equal(0))
	g.Expect(mem.IsErased(bankSize, bankSize)).To(BeTrue())
}

//
func TestOddPayloadRejected(t *testing.T) {

	g := NewWithT(t)
	mem, _ := flash.NewMemory(4*bankSize, 64, 1024)

	s := newStore(t, mem, []Entry{
		{Code: 1, Flags: FlagCallback,
			Deliver: func(p []byte) error { return nil },
			Collect: func(write func([]byte) error) error {
				return write([]byte{1, 2, 3})
			}},
	}, 1, 1000)

	err := s.Save(context.Background())
	g.Expect(err).To(MatchError(ErrStore))
	g.Expect(err.Error()).To(ContainSubstring("odd payload size"))
}

//
func TestValues(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x22)

	v, err := s.Value(1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(pattern(0x22, 4)))

	v, err = s.Value(3)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(pattern(0x22, 40)))

	g.Expect(s.SetValue(1, []byte{5, 5})).To(Succeed())
	g.Expect(f.speed).To(Equal([]byte{5, 5, 0x24, 0x25}))

	g.Expect(s.SetValue(1, make([]byte, 6))).To(MatchError(block.ErrInvalidSize))
	g.Expect(s.SetValue(99, nil)).To(MatchError(ErrInvalidEntry))
	_, err = s.Value(99)
	g.Expect(err).To(MatchError(ErrInvalidEntry))
}

//
func TestExportImport(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	f.fill(0x33)
	var buf bytes.Buffer
	g.Expect(s.Export(&buf)).To(Succeed())

	// speed, gain, table, counter, calib
	g.Expect(buf.Len()).To(Equal(5*block.HeaderSize + 4 + 6 + 40 + 2 + 2))

	f.clear()
	n, err := s.Import(buf.Bytes())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(4))

	g.Expect(f.speed).To(Equal(pattern(0x33, 4)))
	g.Expect(f.gain).To(Equal(pattern(0x33, 6)))
	g.Expect(f.table).To(Equal(pattern(0x33, 40)))
	g.Expect(f.calib).To(Equal(pattern(0x33, 2)))
	g.Expect(f.counter).To(Equal([]byte{0, 0}))

	n, err = s.Import([]byte("no blocks in here"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(0))
}

//
func TestDump(t *testing.T) {

	g := NewWithT(t)
	f := newFixture(t)
	s := f.store(t, 1, 1000)

	g.Expect(s.Save(context.Background())).To(Succeed())

	var buf bytes.Buffer
	g.Expect(s.Dump(&buf, 1)).To(Succeed())
	g.Expect(strings.Count(buf.String(), "BLOCK:")).To(Equal(6))
	g.Expect(buf.String()).To(ContainSubstring("6 blocks"))

	g.Expect(s.Dump(&buf, 2)).To(HaveOccurred())
}
