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

package control

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

//
func (a *api) list(w http.ResponseWriter, req *http.Request) {

	var list []*Parameter

	for _, e := range a.daemon.Entries() {
		value, err := a.daemon.Get(req.Context(), e.Code)
		if err != nil {
			value = nil // write-only callback entry
		}
		list = append(list, newParameter(e, value))
	}

	if wantsJSON(req) {
		sendJSONReply(list, http.StatusOK, w)

	} else {
		strList := fmt.Sprintf("\n%5s  %-20s  %5s  %-24s  %s",
			"CODE", "NAME", "SIZE", "FLAGS", "VALUE")
		for _, p := range list {
			strList += "\n" + p.String()
		}
		sendReply([]byte(strList), http.StatusOK, w)
	}
}

//
func (a *api) banks(w http.ResponseWriter, req *http.Request) {

	reports := a.daemon.Banks()

	if wantsJSON(req) {
		var banks []*Bank
		for ix := range reports {
			banks = append(banks, newBank(&reports[ix]))
		}
		sendJSONReply(banks, http.StatusOK, w)

	} else {
		str := ""
		for ix := range reports {
			str += "\n" + reports[ix].String()
		}
		sendReply([]byte(str), http.StatusOK, w)
	}
}

//
func (a *api) dump(w http.ResponseWriter, req *http.Request) {

	bank, err := strconv.Atoi(mux.Vars(req)["bank"])
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	read, write := io.Pipe()

	go func() {
		write.CloseWithError(a.daemon.Dump(write, bank))
	}()

	sendStreamReply(read, http.StatusOK, w)
}
