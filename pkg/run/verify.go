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
func NewVerify() *Verify {

	v := &Verify{}
	v.Runner = *NewRunner(
		"verify [-p|--port {port}]",
		"re-verify parameter flash",
		`Use the verify command to have the daemon re-verify both flash banks, and
select the authoritative one. Parameters are not loaded.`,
		runnerHelpEpilogue, v.Run)

	v.AddBaseSettings()

	return v
}

//
type Verify struct {
	Runner
}

//
func (v *Verify) Run() error {
	v.ParseSettings()
	return v.printCall("PUT", "/verify", nil)
}
