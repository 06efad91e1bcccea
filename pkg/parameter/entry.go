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
	"fmt"
	"sort"
	"strings"

	"github.com/xelalexv/parmstore/pkg/block"
)

// CodeEndSignature is the block code reserved for the end signature.
const CodeEndSignature int16 = 0x7fff

//
type Flags uint16

const (
	// FlagRestoreOnly entries are never saved, they only receive defaults
	FlagRestoreOnly Flags = 1 << iota
	// FlagCallback entries are delivered and collected via functions
	FlagCallback
	// FlagIndirect entries refer to their data via Ref
	FlagIndirect
	// FlagNoDefault entries are left alone by a restore
	FlagNoDefault
	// FlagStoreOnly entries are saved, but never loaded back
	FlagStoreOnly
	// FlagCore entries form the subset loaded by a core load
	FlagCore
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagRestoreOnly, "restore-only"},
	{FlagCallback, "callback"},
	{FlagIndirect, "indirect"},
	{FlagNoDefault, "no-default"},
	{FlagStoreOnly, "store-only"},
	{FlagCore, "core"},
}

//
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

//
func (f Flags) String() string {
	var names []string
	for _, n := range flagNames {
		if f.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}

// ParseFlag returns the flag with the given name, as used by Flags.String.
func ParseFlag(name string) (Flags, error) {
	for _, n := range flagNames {
		if n.name == name {
			return n.flag, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown flag '%s'", ErrInvalidEntry, name)
}

/*
	Entry is a structure registered by the application for persistence. The
	store doesn't own the data, it reads it when saving, and writes to it when
	loading or restoring defaults. How the data is reached depends on flags:

		- direct: Data is the RAM copy of the structure
		- FlagIndirect: Ref points to the slice holding the structure, so the
		  application can swap the backing buffer at runtime
		- FlagCallback: Deliver receives a loaded or default payload, Collect
		  streams the current value when saving. Length is the declared
		  payload length handed to Deliver; 0 means the length is taken from
		  the payload.

	Default is copied over the data on a restore, the remainder of the data
	is zeroed.
*/
type Entry struct {
	Code    int16
	Name    string
	Flags   Flags
	Data    []byte
	Ref     *[]byte
	Deliver func(p []byte) error
	Collect func(write func(p []byte) error) error
	Length  int
	Default []byte
}

//
func (e *Entry) String() string {
	return fmt.Sprintf("%5d  %-20s  %5d bytes  %s", e.Code, e.Name, e.Size(),
		e.Flags)
}

// Size returns the current size of the entry's RAM copy, or the declared
// length of a callback entry.
func (e *Entry) Size() int {
	switch {
	case e.Flags.Has(FlagCallback):
		return e.Length
	case e.Flags.Has(FlagIndirect):
		return len(*e.Ref)
	default:
		return len(e.Data)
	}
}

// target returns the RAM copy of a direct or indirect entry.
func (e *Entry) target() []byte {
	if e.Flags.Has(FlagIndirect) {
		return *e.Ref
	}
	return e.Data
}

// deliver hands payload p to the entry.
func (e *Entry) deliver(p []byte) error {

	if e.Flags.Has(FlagCallback) {
		length := e.Length
		if length == 0 {
			length = len(p)
		}
		if length > len(p) {
			return fmt.Errorf(
				"%w: entry %d declares %d bytes, payload has %d",
				block.ErrInvalidSize, e.Code, length, len(p))
		}
		return e.Deliver(p[:length])
	}

	dst := e.target()
	if len(p) > len(dst) {
		return fmt.Errorf("%w: payload of %d bytes for entry %d of %d bytes",
			block.ErrInvalidSize, len(p), e.Code, len(dst))
	}
	copy(dst, p)
	return nil
}

// collect streams the entry's current value to write.
func (e *Entry) collect(write func(p []byte) error) error {
	if e.Flags.Has(FlagCallback) {
		return e.Collect(write)
	}
	return write(e.target())
}

// applyDefault copies the default over the entry's data. Direct and indirect
// entries get the remainder zeroed. Callback entries only receive a default
// if they have one.
func (e *Entry) applyDefault() error {

	if e.Flags.Has(FlagNoDefault) {
		return nil
	}

	if e.Flags.Has(FlagCallback) {
		if len(e.Default) == 0 {
			return nil
		}
		return e.Deliver(e.Default)
	}

	dst := e.target()
	n := copy(dst, e.Default)
	for ix := n; ix < len(dst); ix++ {
		dst[ix] = 0
	}
	return nil
}

// Registry is the validated table of registered entries, in registration
// order.
type Registry struct {
	entries []*Entry
	byCode  map[int16]*Entry
}

/*
	NewRegistry validates entries and builds a registry from them. Codes need
	to be unique and within 1 through 32766, since the highest code is taken
	by the end signature. Each entry needs the fields its flags call for. The
	data of direct entries needs to have an even size, since blocks in a bank
	are word aligned. Defaults must fit into the data.
*/
func NewRegistry(entries []Entry) (*Registry, error) {

	r := &Registry{byCode: make(map[int16]*Entry)}

	for ix := range entries {

		e := &entries[ix]

		if err := validate(e); err != nil {
			return nil, err
		}
		if _, dup := r.byCode[e.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %d", ErrInvalidEntry, e.Code)
		}

		r.entries = append(r.entries, e)
		r.byCode[e.Code] = e
	}

	return r, nil
}

//
func validate(e *Entry) error {

	if e.Code < block.MinCode || e.Code >= CodeEndSignature {
		return fmt.Errorf("%w: code %d out of range", ErrInvalidEntry, e.Code)
	}

	fail := func(msg string, args ...interface{}) error {
		return fmt.Errorf("%w: entry %d: %s", ErrInvalidEntry, e.Code,
			fmt.Sprintf(msg, args...))
	}

	callback := e.Flags.Has(FlagCallback)
	indirect := e.Flags.Has(FlagIndirect)

	switch {

	case callback && indirect:
		return fail("callback and indirect are exclusive")

	case callback:
		if e.Deliver == nil {
			return fail("callback entry without deliver function")
		}
		if e.Collect == nil && !e.Flags.Has(FlagRestoreOnly) {
			return fail("callback entry without collect function")
		}
		if e.Length < 0 || e.Length > block.MaxPayload {
			return fail("invalid length %d", e.Length)
		}
		if len(e.Default) > block.MaxPayload {
			return fail("default of %d bytes too large", len(e.Default))
		}
		return nil

	case indirect:
		if e.Ref == nil {
			return fail("indirect entry without reference")
		}

	default:
		if e.Data == nil {
			return fail("no data")
		}
	}

	size := len(e.target())
	if size > block.MaxPayload {
		return fail("size %d exceeds maximum of %d", size, block.MaxPayload)
	}
	if size%block.WordSize != 0 {
		return fail("size %d is not a multiple of %d", size, block.WordSize)
	}
	if len(e.Default) > size {
		return fail("default of %d bytes exceeds size %d", len(e.Default), size)
	}

	return nil
}

// Entries returns the registered entries in registration order.
func (r *Registry) Entries() []*Entry {
	return r.entries
}

// Lookup returns the entry registered for code, or nil.
func (r *Registry) Lookup(code int16) *Entry {
	return r.byCode[code]
}

// Codes returns the registered codes in ascending order.
func (r *Registry) Codes() []int16 {
	ret := make([]int16, 0, len(r.entries))
	for _, e := range r.entries {
		ret = append(ret, e.Code)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}
