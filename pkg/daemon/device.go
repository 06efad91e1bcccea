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

package daemon

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/parmstore/pkg/flash"
)

/*
	DeviceConfig selects the flash device to use. With Port set, the flash is
	behind a serial adapter. Otherwise, with Image set, a flash image file is
	used. Without either, flash is simulated in RAM, and lost when the daemon
	stops. Size, PageSize, and SectorSize give the geometry for image and RAM
	flash. A remote flash reports its own geometry.
*/
type DeviceConfig struct {
	Port       string
	BaudRate   uint
	Image      string
	Size       uint32
	PageSize   int
	SectorSize int
}

// OpenDevice opens the flash device selected by cfg. For a serial adapter,
// opening is retried with increasing back-off until ctx is done.
func OpenDevice(ctx context.Context, cfg DeviceConfig) (flash.Device, error) {

	switch {

	case cfg.Port != "":
		r, err := connect(ctx, cfg.Port, cfg.BaudRate)
		if err != nil {
			return nil, err
		}
		if r.PageSize() != cfg.PageSize || r.Size() < cfg.Size {
			log.WithFields(log.Fields{
				"pageSize": r.PageSize(),
				"size":     r.Size(),
			}).Warn("remote flash geometry differs from table")
		}
		return r, nil

	case cfg.Image != "":
		img, err := flash.OpenImage(
			cfg.Image, cfg.Size, cfg.PageSize, cfg.SectorSize)
		if err != nil {
			return nil, err
		}
		return img, nil

	default:
		log.Warn("no flash device given, using volatile RAM flash")
		mem, err := flash.NewMemory(cfg.Size, cfg.PageSize, cfg.SectorSize)
		if err != nil {
			return nil, err
		}
		return mem, nil
	}
}

//
func connect(ctx context.Context, port string, baudRate uint) (
	*flash.Remote, error) {

	maxBackoff := 15 * time.Second

	for backoff := time.Second; ; {

		log.Infof("opening port %s", port)
		r, err := flash.OpenRemote(port, baudRate)
		if err == nil {
			return r, nil
		}

		log.Errorf("cannot open flash adapter: %v", err)
		if backoff < maxBackoff {
			backoff *= 2
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("giving up on port %s: %v", port, ctx.Err())
		}
	}
}
