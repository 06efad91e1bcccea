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

package block

import (
	"github.com/sigurn/crc16"
)

// Seed is the initial value for all block and bank CRCs. Together with the
// CCITT polynomial and no final XOR this is CRC-16/XMODEM, which chains: the
// CRC of a+b equals CRC16(CRC16(Seed, a), b).
const Seed uint16 = 0x0000

var table = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC16 continues a CRC computation started with Seed over data.
func CRC16(seed uint16, data []byte) uint16 {
	return crc16.Update(seed, data, table)
}
