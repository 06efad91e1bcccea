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

// Package table loads parameter tables from YAML files. A table describes the
// application, the flash geometry, the two banks, and the registered entries.
package table

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/ghodss/yaml"

	"github.com/xelalexv/parmstore/pkg/parameter"
)

//
type Application struct {
	Type         uint16 `json:"type"`
	VersionMajor uint16 `json:"versionMajor"`
	VersionMinor uint16 `json:"versionMinor"`
}

//
type Geometry struct {
	Size       uint32 `json:"size"`
	PageSize   int    `json:"pageSize"`
	SectorSize int    `json:"sectorSize"`
}

//
type Bank struct {
	Base uint32 `json:"base"`
	Size uint32 `json:"size"`
}

// Entry is a parameter entry as given in the table file. Default is a hex
// string.
type Entry struct {
	Code    int16    `json:"code"`
	Name    string   `json:"name"`
	Size    int      `json:"size"`
	Flags   []string `json:"flags,omitempty"`
	Default string   `json:"default,omitempty"`
}

//
type Table struct {
	Application Application `json:"application"`
	Flash       Geometry    `json:"flash"`
	Banks       []Bank      `json:"banks"`
	LockTimeout string      `json:"lockTimeout,omitempty"`
	Entries     []Entry     `json:"entries"`
}

// Load reads the table file at path.
func Load(path string) (*Table, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("table %s: %v", path, err)
	}
	return t, nil
}

// Parse parses a YAML table, and checks it for consistency with the flash
// geometry.
func Parse(data []byte) (*Table, error) {

	t := &Table{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}

	if len(t.Banks) != 2 {
		return nil, fmt.Errorf("need exactly 2 banks, got %d", len(t.Banks))
	}

	if t.Flash.SectorSize <= 0 || t.Flash.PageSize <= 0 {
		return nil, fmt.Errorf("flash page and sector size required")
	}

	sector := uint32(t.Flash.SectorSize)
	for ix, b := range t.Banks {
		if b.Base%sector != 0 || b.Size%sector != 0 {
			return nil, fmt.Errorf(
				"bank %d not aligned to sector size %d", ix, sector)
		}
	}

	if _, err := t.lockTimeout(); err != nil {
		return nil, err
	}

	return t, nil
}

//
func (t *Table) lockTimeout() (time.Duration, error) {
	if t.LockTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(t.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid lock timeout: %v", err)
	}
	return d, nil
}

// StoreConfig returns the store configuration described by this table.
// Clock and signaler are left to the caller.
func (t *Table) StoreConfig() parameter.Config {
	timeout, _ := t.lockTimeout()
	return parameter.Config{
		Application: parameter.Application{
			Type:         t.Application.Type,
			VersionMajor: t.Application.VersionMajor,
			VersionMinor: t.Application.VersionMinor,
		},
		Banks: [2]parameter.Bank{
			{Base: t.Banks[0].Base, Size: t.Banks[0].Size},
			{Base: t.Banks[1].Base, Size: t.Banks[1].Size},
		},
		LockTimeout: timeout,
	}
}

/*
	ParameterEntries creates the parameter entries described by this table,
	each with its own buffer of the given size. Entries from a table file
	can't be callback entries, since there's no code behind them. Indirect
	entries get their buffer through a reference.
*/
func (t *Table) ParameterEntries() ([]parameter.Entry, error) {

	ret := make([]parameter.Entry, 0, len(t.Entries))

	for _, e := range t.Entries {

		var flags parameter.Flags
		for _, f := range e.Flags {
			flag, err := parameter.ParseFlag(strings.TrimSpace(f))
			if err != nil {
				return nil, err
			}
			flags |= flag
		}

		if flags.Has(parameter.FlagCallback) {
			return nil, fmt.Errorf(
				"entry %d: callback entries can't be defined in a table", e.Code)
		}

		if e.Size < 0 {
			return nil, fmt.Errorf("entry %d: invalid size %d", e.Code, e.Size)
		}

		def, err := hex.DecodeString(strings.ReplaceAll(e.Default, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("entry %d: invalid default: %v", e.Code, err)
		}

		p := parameter.Entry{
			Code:    e.Code,
			Name:    e.Name,
			Flags:   flags,
			Default: def,
		}

		buf := make([]byte, e.Size)
		if flags.Has(parameter.FlagIndirect) {
			p.Ref = &buf
		} else {
			p.Data = buf
		}

		ret = append(ret, p)
	}

	return ret, nil
}
