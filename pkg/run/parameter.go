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
	"strconv"
	"strings"
)

//
func NewGet() *Get {

	g := &Get{}
	g.Runner = *NewRunner(
		"get {code} [-p|--port {port}]",
		"get parameter value from daemon",
		"\nUse the get command to get the current value of a parameter as hex string.",
		runnerHelpEpilogue, g.Run)

	g.AddBaseSettings()

	return g
}

//
type Get struct {
	Runner
}

//
func (g *Get) Run() error {

	g.ParseSettings()

	if len(g.Args) != 1 {
		return fmt.Errorf("need exactly one parameter code")
	}

	code, err := parseCode(g.Args[0])
	if err != nil {
		return err
	}

	return g.printCall("GET", fmt.Sprintf("/parameter/%d", code), nil)
}

//
func NewSet() *Set {

	s := &Set{}
	s.Runner = *NewRunner(
		"set {code} {hex value} [-p|--port {port}]",
		"set parameter value in daemon",
		`
Use the set command to set the value of a parameter. The value is given as hex
string, and may contain spaces. The change is kept in RAM until the next save.`,
		runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()

	return s
}

//
type Set struct {
	Runner
}

//
func (s *Set) Run() error {

	s.ParseSettings()

	if len(s.Args) < 2 {
		return fmt.Errorf("need parameter code and value")
	}

	code, err := parseCode(s.Args[0])
	if err != nil {
		return err
	}

	value := strings.Join(s.Args[1:], "")
	return s.printCall("PUT", fmt.Sprintf("/parameter/%d", code),
		strings.NewReader(value))
}

//
func parseCode(arg string) (int16, error) {
	code, err := strconv.ParseInt(arg, 0, 16)
	if err != nil || code < 1 {
		return 0, fmt.Errorf("invalid parameter code: %s", arg)
	}
	return int16(code), nil
}
