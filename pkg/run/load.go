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
func NewLoad() *Load {

	l := &Load{}
	l.Runner = *NewRunner(
		"load [-c|--core] [-p|--port {port}]",
		"load parameters from flash",
		`Use the load command to have the daemon load parameters from the active flash
bank, discarding unsaved changes. With core set, only core parameters are
loaded.`,
		runnerHelpEpilogue, l.Run)

	l.AddBaseSettings()
	l.AddSetting(&l.Core, "core", "c", "", false,
		"only load core parameters", false)

	return l
}

//
type Load struct {
	//
	Runner
	//
	Core bool
}

//
func (l *Load) Run() error {
	l.ParseSettings()
	return l.printCall("PUT", fmt.Sprintf("/load?core=%v", l.Core), nil)
}
