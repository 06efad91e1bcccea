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
	"os"

	"github.com/xelalexv/parmstore/pkg/flash"
	"github.com/xelalexv/parmstore/pkg/parameter"
	"github.com/xelalexv/parmstore/pkg/table"
)

//
func NewDump() *Dump {

	d := &Dump{}
	d.Runner = *NewRunner(
		`dump [-b|--bank {bank}] [-p|--port {port}]
     dump -i|--image {flash image} -t|--table {parameter table} [-b|--bank {bank}]`,
		"dump flash bank from daemon or image",
		`
Use the dump command to output all blocks found in a flash bank, either from the
daemon, or from a flash image file.`,
		runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddSetting(&d.Bank, "bank", "b", "", 0, "bank number (0-1)", false)
	d.AddSetting(&d.Image, "image", "i", "", nil, "flash image file", false)
	d.AddSetting(&d.Table, "table", "t", "PARMSTORE_TABLE", nil,
		"parameter table, needed with image", false)

	return d
}

//
type Dump struct {
	//
	Runner
	//
	Bank  int
	Image string
	Table string
}

//
func (d *Dump) Run() error {

	d.ParseSettings()

	if d.Bank < 0 || d.Bank > 1 {
		return fmt.Errorf("invalid bank number: %d; valid numbers are 0 and 1",
			d.Bank)
	}

	if d.Image == "" {
		return d.printCall("GET", fmt.Sprintf("/dump/%d", d.Bank), nil)
	}

	if d.Table == "" {
		return fmt.Errorf("dumping an image requires a parameter table")
	}

	return dumpImage(d.Image, d.Table, d.Bank)
}

//
func dumpImage(image, tablePath string, bank int) error {

	tbl, err := table.Load(tablePath)
	if err != nil {
		return err
	}

	entries, err := tbl.ParameterEntries()
	if err != nil {
		return err
	}

	reg, err := parameter.NewRegistry(entries)
	if err != nil {
		return err
	}

	if _, err := os.Stat(image); err != nil {
		return err
	}

	img, err := openImage(image, tbl)
	if err != nil {
		return err
	}
	defer img.Close()

	store, err := parameter.NewStore(img, reg, tbl.StoreConfig())
	if err != nil {
		return err
	}

	if _, err := store.Verify(); err != nil {
		fmt.Printf("\n%v\n", err)
	}
	for _, r := range store.Banks() {
		fmt.Printf("\n%s", r.String())
	}
	fmt.Println()

	return store.Dump(os.Stdout, bank)
}

//
func openImage(path string, tbl *table.Table) (*flash.Image, error) {
	return flash.OpenImage(path, tbl.Flash.Size, tbl.Flash.PageSize,
		tbl.Flash.SectorSize)
}
