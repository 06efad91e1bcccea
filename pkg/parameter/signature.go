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
	"encoding/binary"
	"fmt"
	"time"
)

// SignatureSize is the payload size of an end signature block.
const SignatureSize = 18

// Application identifies the firmware owning a parameter set.
type Application struct {
	Type         uint16
	VersionMajor uint16
	VersionMinor uint16
}

/*
	Signature is the payload of the end signature, the last block written by
	every save. CRC covers the BankSize bytes starting at BankStart, i.e.
	everything written to the bank before the signature block. A bank is
	intact if and only if its signature is present and this CRC checks out.
*/
type Signature struct {
	Application
	CRC       uint16
	Timestamp uint32
	BankStart uint32
	BankSize  uint16
}

// Bytes returns the little-endian wire representation of the signature.
func (s *Signature) Bytes() []byte {
	buf := make([]byte, SignatureSize)
	binary.LittleEndian.PutUint16(buf[0:], s.Type)
	binary.LittleEndian.PutUint16(buf[2:], s.VersionMajor)
	binary.LittleEndian.PutUint16(buf[4:], s.VersionMinor)
	binary.LittleEndian.PutUint16(buf[6:], s.CRC)
	binary.LittleEndian.PutUint32(buf[8:], s.Timestamp)
	binary.LittleEndian.PutUint32(buf[12:], s.BankStart)
	binary.LittleEndian.PutUint16(buf[16:], s.BankSize)
	return buf
}

//
func parseSignature(p []byte) (*Signature, error) {
	if len(p) != SignatureSize {
		return nil, fmt.Errorf("signature has %d bytes, want %d",
			len(p), SignatureSize)
	}
	return &Signature{
		Application: Application{
			Type:         binary.LittleEndian.Uint16(p[0:]),
			VersionMajor: binary.LittleEndian.Uint16(p[2:]),
			VersionMinor: binary.LittleEndian.Uint16(p[4:]),
		},
		CRC:       binary.LittleEndian.Uint16(p[6:]),
		Timestamp: binary.LittleEndian.Uint32(p[8:]),
		BankStart: binary.LittleEndian.Uint32(p[12:]),
		BankSize:  binary.LittleEndian.Uint16(p[16:]),
	}, nil
}

//
func (s *Signature) String() string {
	return fmt.Sprintf(
		"app %d v%d.%d  saved %s  bank 0x%08x + %d bytes  crc 0x%04x",
		s.Type, s.VersionMajor, s.VersionMinor,
		time.Unix(int64(s.Timestamp), 0).UTC().Format(time.RFC3339),
		s.BankStart, s.BankSize, s.CRC)
}
