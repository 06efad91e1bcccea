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
	"net/http"

	"github.com/xelalexv/parmstore/pkg/parameter"
)

//
func (a *api) verify(w http.ResponseWriter, req *http.Request) {

	status, err := a.daemon.Verify()
	if err != nil && status == parameter.StatusUninitialized {
		handleError(err, errorStatus(err), w)
		return
	}

	if wantsJSON(req) {
		sendJSONReply(newStatus(a.daemon.GetStatus()), http.StatusOK, w)
		return
	}

	msg := fmt.Sprintf("parameter flash %s", status)
	if err != nil {
		msg += fmt.Sprintf(": %v", err)
	}
	sendReply([]byte(msg), http.StatusOK, w)
}

//
func (a *api) save(w http.ResponseWriter, req *http.Request) {
	if err := a.daemon.Save(req.Context()); err != nil {
		handleError(err, errorStatus(err), w)
		return
	}
	stat := a.daemon.GetStatus().Store
	sendReply([]byte(fmt.Sprintf(
		"parameters saved to bank %d", stat.ActiveBank)), http.StatusOK, w)
}

//
func (a *api) restore(w http.ResponseWriter, req *http.Request) {

	immediate := isFlagSet(req, "immediate")

	if err := a.daemon.Restore(req.Context(), immediate); err != nil {
		handleError(err, errorStatus(err), w)
		return
	}

	msg := "parameters restored to defaults, flash erased"
	if immediate {
		msg = "parameters restored to defaults"
	}
	sendReply([]byte(msg), http.StatusOK, w)
}

//
func (a *api) load(w http.ResponseWriter, req *http.Request) {

	core := isFlagSet(req, "core")

	if err := a.daemon.Load(req.Context(), core); err != nil {
		handleError(err, errorStatus(err), w)
		return
	}

	msg := "parameters loaded"
	if core {
		msg = "core parameters loaded"
	}
	sendReply([]byte(msg), http.StatusOK, w)
}
