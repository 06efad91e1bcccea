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

package run

//
func NewSave() *Save {

	s := &Save{}
	s.Runner = *NewRunner(
		"save [-p|--port {port}]",
		"save parameters to flash",
		`Use the save command to have the daemon save all parameters to the inactive
flash bank, twice.`,
		runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()

	return s
}

//
type Save struct {
	Runner
}

//
func (s *Save) Run() error {
	s.ParseSettings()
	return s.printCall("PUT", "/save", nil)
}
