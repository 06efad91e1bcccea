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

package main

import (
	"fmt"
	"os"

	"github.com/xelalexv/parmstore/pkg/run"
)

//
var ParmStoreVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: parmctl {serve|status|verify|save|restore|load|ls|get|set|dump|
                   export|import|version} ...

run 'parmctl {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nParmStore %s\n\n", ParmStoreVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "verify":
		run.DieOnError(run.NewVerify().Execute(args))

	case "save":
		run.DieOnError(run.NewSave().Execute(args))

	case "restore":
		run.DieOnError(run.NewRestore().Execute(args))

	case "load":
		run.DieOnError(run.NewLoad().Execute(args))

	case "ls":
		run.DieOnError(run.NewList().Execute(args))

	case "get":
		run.DieOnError(run.NewGet().Execute(args))

	case "set":
		run.DieOnError(run.NewSet().Execute(args))

	case "dump":
		run.DieOnError(run.NewDump().Execute(args))

	case "export":
		run.DieOnError(run.NewExport().Execute(args))

	case "import":
		run.DieOnError(run.NewImport().Execute(args))

	case "version":
		version()

	case "", "-h", "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}
