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

package control

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/xelalexv/parmstore/pkg/daemon"
	"github.com/xelalexv/parmstore/pkg/parameter"
)

//
type Status struct {
	Store         string `json:"store"`
	Application   uint16 `json:"application"`
	Version       string `json:"version"`
	ActiveBank    int    `json:"activeBank"`
	NextBank      int    `json:"nextBank"`
	Timestamp     uint32 `json:"timestamp,omitempty"`
	Modified      bool   `json:"modified"`
	ResetRequired bool   `json:"resetRequired"`
}

//
func newStatus(s *daemon.Status) *Status {
	ret := &Status{
		Store:       s.Store.Status.String(),
		Application: s.Application.Type,
		Version: fmt.Sprintf("%d.%d",
			s.Application.VersionMajor, s.Application.VersionMinor),
		ActiveBank:    s.Store.ActiveBank,
		NextBank:      s.Store.NextBank,
		Modified:      s.Modified,
		ResetRequired: s.ResetRequired,
	}
	if s.Store.Active != nil {
		ret.Timestamp = s.Store.Active.Timestamp
	}
	return ret
}

//
type Parameter struct {
	Code  int16  `json:"code"`
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Flags string `json:"flags"`
	Value string `json:"value,omitempty"`
}

//
func newParameter(e *parameter.Entry, value []byte) *Parameter {
	return &Parameter{
		Code:  e.Code,
		Name:  e.Name,
		Size:  e.Size(),
		Flags: e.Flags.String(),
		Value: hex.EncodeToString(value),
	}
}

//
func (p *Parameter) String() string {
	value := p.Value
	if len(value) > 32 {
		value = value[:32] + "..."
	}
	return fmt.Sprintf("%5d  %-20s  %5d  %-24s  %s",
		p.Code, p.Name, p.Size, p.Flags, value)
}

//
type Bank struct {
	Index     int    `json:"index"`
	Base      uint32 `json:"base"`
	Size      uint32 `json:"size"`
	State     string `json:"state"`
	Blocks    int    `json:"blocks"`
	Timestamp uint32 `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

//
func newBank(r *parameter.BankReport) *Bank {
	ret := &Bank{
		Index:  r.Index,
		Base:   r.Bank.Base,
		Size:   r.Bank.Size,
		State:  r.State.String(),
		Blocks: r.Blocks,
		Reason: r.Reason,
	}
	if r.Signature != nil {
		ret.Timestamp = r.Signature.Timestamp
	}
	return ret
}

// Change is sent to watching clients when the daemon status changed.
type Change struct {
	Status *Status `json:"status"`
}

// decodeValue decodes a hex parameter value, ignoring white space.
func decodeValue(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	ret, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter value: %v", err)
	}
	return ret, nil
}
