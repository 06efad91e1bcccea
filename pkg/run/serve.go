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
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/parmstore/pkg/control"
	"github.com/xelalexv/parmstore/pkg/daemon"
	"github.com/xelalexv/parmstore/pkg/table"
)

// how long to keep trying to reach the flash adapter at startup
const connectTimeout = time.Minute

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve -t|--table {parameter table} [-d|--device {device}] [-b|--baud {rate}]
      [-i|--image {flash image}] [-a|--address {address}] [-s|--autosave {interval}]`,
		"daemon & API server command",
		`Use the serve command for running the parameter daemon and API server. The
parameter table describes flash geometry, banks, and parameters. Flash is
either reached via a serial adapter, kept in an image file, or, if neither is
given, simulated in RAM.`,
		`- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	s.AddSetting(&s.Table, "table", "t", "PARMSTORE_TABLE", nil,
		"parameter table file", true)
	s.AddSetting(&s.Device, "device", "d", "PARMSTORE_DEVICE", nil,
		"serial port device of flash adapter", false)
	s.AddSetting(&s.BaudRate, "baud", "b", "PARMSTORE_BAUD", 1000000,
		"baud rate of flash adapter", false)
	s.AddSetting(&s.Image, "image", "i", "PARMSTORE_IMAGE", nil,
		"flash image file, used when no device is given", false)
	s.AddSetting(&s.Address, "address", "a", "PARMSTORE_ADDRESS", "",
		"listen address of API server, port defaults to 8888", false)
	s.AddSetting(&s.AutoSave, "autosave", "s", "PARMSTORE_AUTOSAVE", nil,
		"auto save interval for modified parameters, off if zero", false)

	return s
}

//
type Serve struct {
	//
	Runner
	//
	Table    string
	Device   string
	BaudRate uint
	Image    string
	Address  string
	AutoSave time.Duration
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	tbl, err := table.Load(s.Table)
	if err != nil {
		return err
	}

	entries, err := tbl.ParameterEntries()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	dev, err := daemon.OpenDevice(ctx, daemon.DeviceConfig{
		Port:       s.Device,
		BaudRate:   s.BaudRate,
		Image:      s.Image,
		Size:       tbl.Flash.Size,
		PageSize:   tbl.Flash.PageSize,
		SectorSize: tbl.Flash.SectorSize,
	})
	cancel()
	if err != nil {
		return err
	}

	d, err := daemon.NewDaemon(dev, entries, tbl.StoreConfig(), s.AutoSave)
	if err != nil {
		return err
	}

	status, err := d.Boot()
	if err != nil {
		log.Errorf("boot finished with status %s: %v", status, err)
	} else {
		log.Infof("boot finished with status %s", status)
	}

	wg := &sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := d.Serve()
		if err != nil && err != daemon.ErrDaemonStopped {
			log.Errorf("daemon closed with error: %v", err)
		} else {
			log.Info("daemon stopped")
		}
	}()

	api := control.NewAPIServer(s.Address, d)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs:
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					api.Stop()
					d.Stop()
					wg.Wait()
					if err := d.Close(); err != nil {
						log.Errorf("cannot close flash device: %v", err)
					}
					log.Info("ParmStore stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing daemon to stop immediately, unsaved parameters are lost")
				os.Exit(1)
			}

		case <-done:
			return nil
		}
	}
}
