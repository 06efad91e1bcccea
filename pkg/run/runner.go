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
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/xelalexv/parmstore/pkg/control"
)

//
const runnerHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.
`

// NewRunner creates a runner for client commands. The parameters are passed
// on to the wrapped command.
func NewRunner(use, short, long, helpEpilogue string,
	exec func() error) *Runner {
	return &Runner{Command: *NewCommand(use, short, long, helpEpilogue, exec)}
}

//
type Runner struct {
	//
	Command
	//
	Host string
	Port int
}

//
func (r *Runner) AddBaseSettings() {
	// Implementation Note: This cannot be included in NewRunner, but rather has
	// to be called from the top level command type. Otherwise, the settings get
	// bound to the runner copied into the command, and stay empty.
	r.AddSetting(&r.Host, "host", "", "PARMSTORE_HOST", "127.0.0.1",
		"host of daemon's API server", false)
	r.AddSetting(&r.Port, "port", "p", "PARMSTORE_PORT", control.DefaultPort,
		"port of daemon's API server", false)
}

/*
	apiCall sends a request to the daemon's API server, and returns the
	response body. If the server replies with an error status, the returned
	error carries the server's message.
*/
func (r *Runner) apiCall(method, path string, json bool,
	body io.Reader) (io.ReadCloser, error) {

	req, err := http.NewRequest(
		method, fmt.Sprintf("http://%s:%d%s", r.Host, r.Port, path), body)
	if err != nil {
		return nil, err
	}

	if json {
		req.Header.Add("Content-Type", "application/json")
		req.Header.Add("Accept", "application/json")
	} else {
		req.Header.Add("Content-Type", "text/plain")
		req.Header.Add("Accept", "text/plain")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("daemon replied %s: %s", resp.Status,
			strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}

// printCall makes an API call and prints the response to stdout.
func (r *Runner) printCall(method, path string, body io.Reader) error {

	resp, err := r.apiCall(method, path, false, body)
	if err != nil {
		return err
	}
	defer resp.Close()

	if _, err := io.Copy(os.Stdout, resp); err != nil {
		return err
	}
	return nil
}
