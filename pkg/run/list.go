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
func NewList() *List {

	l := &List{}
	l.Runner = *NewRunner(
		"ls [-b|--banks] [-p|--port {port}]",
		"list parameters or banks",
		"\nUse the ls command to get the parameter list, or the flash bank states from the daemon.",
		runnerHelpEpilogue, l.Run)

	l.AddBaseSettings()
	l.AddSetting(&l.Banks, "banks", "b", "", false,
		"list flash banks instead of parameters", false)

	return l
}

//
type List struct {
	//
	Runner
	//
	Banks bool
}

//
func (l *List) Run() error {

	l.ParseSettings()

	path := "/list"
	if l.Banks {
		path = "/banks"
	}
	return l.printCall("GET", path, nil)
}
