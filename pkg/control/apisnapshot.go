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
	"bytes"
	"fmt"
	"io"
	"net/http"
)

//
func (a *api) export(w http.ResponseWriter, req *http.Request) {

	var out bytes.Buffer
	if err := a.daemon.Export(req.Context(), &out); err != nil {
		handleError(err, errorStatus(err), w)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes())
}

//
func (a *api) importSnapshot(w http.ResponseWriter, req *http.Request) {

	data, err := io.ReadAll(io.LimitReader(req.Body, 1048576))
	if handleError(err, http.StatusInternalServerError, w) {
		return
	}
	if handleError(req.Body.Close(), http.StatusInternalServerError, w) {
		return
	}

	n, err := a.daemon.Import(req.Context(), data)
	if err != nil {
		handleError(fmt.Errorf("imported %d parameters, %w", n, err),
			errorStatus(err), w)
		return
	}

	sendReply([]byte(fmt.Sprintf("imported %d parameters", n)),
		http.StatusOK, w)
}
