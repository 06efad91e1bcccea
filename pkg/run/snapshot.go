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
	"bufio"
	"fmt"
	"io"
	"os"
)

//
func NewExport() *Export {

	e := &Export{}
	e.Runner = *NewRunner(
		"export -o|--output {file} [-f|--force] [-p|--port {port}]",
		"get parameter snapshot from daemon and save",
		"\nUse the export command to save a snapshot of all parameters to a file.",
		runnerHelpEpilogue, e.Run)

	e.AddBaseSettings()
	e.AddSetting(&e.File, "output", "o", "", nil, "snapshot output file", true)
	e.AddSetting(&e.Force, "force", "f", "", false,
		"force overwriting output file", false)

	return e
}

//
type Export struct {
	//
	Runner
	//
	File  string
	Force bool
}

//
func (e *Export) Run() error {

	e.ParseSettings()

	if !e.Force {
		if _, err := os.Stat(e.File); err == nil &&
			!GetUserConfirmation("File exists, overwrite?") {
			return nil
		}
	}

	resp, err := e.apiCall("GET", "/snapshot", false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	f, err := os.Create(e.File)
	if err != nil {
		return err
	}
	defer f.Close()

	out := bufio.NewWriter(f)
	defer out.Flush()

	if _, err := io.Copy(out, resp); err != nil {
		return err
	}

	fmt.Println("snapshot saved")
	return nil
}

//
func NewImport() *Import {

	i := &Import{}
	i.Runner = *NewRunner(
		"import -i|--input {file} [-p|--port {port}]",
		"send parameter snapshot to daemon",
		`
Use the import command to set parameters from a snapshot file. The change is
kept in RAM until the next save.`,
		runnerHelpEpilogue, i.Run)

	i.AddBaseSettings()
	i.AddSetting(&i.File, "input", "i", "", nil, "snapshot input file", true)

	return i
}

//
type Import struct {
	//
	Runner
	//
	File string
}

//
func (i *Import) Run() error {

	i.ParseSettings()

	f, err := os.Open(i.File)
	if err != nil {
		return err
	}
	defer f.Close()

	return i.printCall("PUT", "/snapshot", bufio.NewReader(f))
}
