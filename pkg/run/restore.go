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

import (
	"fmt"
)

//
func NewRestore() *Restore {

	r := &Restore{}
	r.Runner = *NewRunner(
		"restore [-i|--immediate] [-f|--force] [-p|--port {port}]",
		"restore factory defaults",
		`Use the restore command to reset all parameters to their defaults. Unless
immediate is set, both flash banks are erased as well.`,
		`- After a restore, the application needs to save and reset.

`+runnerHelpEpilogue, r.Run)

	r.AddBaseSettings()
	r.AddSetting(&r.Immediate, "immediate", "i", "", false,
		"only reset parameters in RAM, leave flash as is", false)
	r.AddSetting(&r.Force, "force", "f", "", false,
		"don't ask for confirmation", false)

	return r
}

//
type Restore struct {
	//
	Runner
	//
	Immediate bool
	Force     bool
}

//
func (r *Restore) Run() error {

	r.ParseSettings()

	if !r.Immediate && !r.Force &&
		!GetUserConfirmation("This erases all saved parameters, continue?") {
		return nil
	}

	return r.printCall("PUT", fmt.Sprintf("/restore?immediate=%v", r.Immediate),
		nil)
}
