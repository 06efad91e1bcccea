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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/xelalexv/parmstore/pkg/parameter"
)

//
func (a *api) getParameter(w http.ResponseWriter, req *http.Request) {

	code, ok := getCode(w, req)
	if !ok {
		return
	}

	e := a.lookup(code, w)
	if e == nil {
		return
	}

	value, err := a.daemon.Get(req.Context(), code)
	if handleError(err, errorStatus(err), w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(newParameter(e, value), http.StatusOK, w)
	} else {
		sendReply([]byte(hex.EncodeToString(value)), http.StatusOK, w)
	}
}

//
func (a *api) setParameter(w http.ResponseWriter, req *http.Request) {

	code, ok := getCode(w, req)
	if !ok {
		return
	}

	if a.lookup(code, w) == nil {
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 1048576))
	if handleError(err, http.StatusInternalServerError, w) {
		return
	}
	if handleError(req.Body.Close(), http.StatusInternalServerError, w) {
		return
	}

	var value []byte

	if wantsJSON(req) {
		var p Parameter
		if handleError(json.Unmarshal(body, &p),
			http.StatusUnprocessableEntity, w) {
			return
		}
		value, err = decodeValue(p.Value)
	} else {
		value, err = decodeValue(string(body))
	}
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if err := a.daemon.Set(req.Context(), code, value); err != nil {
		handleError(err, errorStatus(err), w)
		return
	}

	sendReply([]byte(fmt.Sprintf(
		"set parameter %d to %d bytes", code, len(value))), http.StatusOK, w)
}

//
func (a *api) lookup(code int16, w http.ResponseWriter) *parameter.Entry {
	for _, e := range a.daemon.Entries() {
		if e.Code == code {
			return e
		}
	}
	handleError(fmt.Errorf("no parameter with code %d", code),
		http.StatusNotFound, w)
	return nil
}
