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
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/parmstore/pkg/flash"
	"github.com/xelalexv/parmstore/pkg/parameter"
)

//
var ErrDaemonStopped = errors.New("daemon stopped")

// how long API requests wait for the daemon lock
const lockTimeout = time.Second

/*
	Daemon owns the flash device and the parameter store, and keeps the RAM
	copies of all parameters. It serializes access to them with its lock, so
	that a parameter can't change while a save collects the values. When
	configured with an auto save interval, modified parameters are saved
	periodically, and once more when the daemon stops.
*/
type Daemon struct {
	//
	dev   flash.Device
	store *parameter.Store
	lock  chan bool
	//
	dirty         int32
	resetRequired int32
	//
	autoSave time.Duration
	stop     chan bool
	stopOnce sync.Once
}

// Status is a snapshot of the daemon state.
type Status struct {
	Store         parameter.State
	Application   parameter.Application
	Modified      bool
	ResetRequired bool
}

//
func (s *Status) String() string {
	ret := fmt.Sprintf("\nstore:       %s", s.Store.Status)
	ret += fmt.Sprintf("\napplication: %d v%d.%d", s.Application.Type,
		s.Application.VersionMajor, s.Application.VersionMinor)
	if s.Store.Active != nil {
		ret += fmt.Sprintf("\nactive bank: %d, %s",
			s.Store.ActiveBank, s.Store.Active)
	} else {
		ret += "\nactive bank: none"
	}
	ret += fmt.Sprintf("\nnext bank:   %d", s.Store.NextBank)
	if s.Modified {
		ret += "\nparameters modified since last save"
	}
	if s.ResetRequired {
		ret += "\nsave & reset required"
	}
	return ret + "\n"
}

// NewDaemon creates a daemon for the given entries, stored on dev. When
// autoSave is greater than zero, modified parameters are saved at that
// interval.
func NewDaemon(dev flash.Device, entries []parameter.Entry,
	cfg parameter.Config, autoSave time.Duration) (*Daemon, error) {

	reg, err := parameter.NewRegistry(entries)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		dev:      dev,
		lock:     make(chan bool, 1),
		autoSave: autoSave,
		stop:     make(chan bool),
	}

	cfg.Signaler = d
	if d.store, err = parameter.NewStore(dev, reg, cfg); err != nil {
		return nil, err
	}

	return d, nil
}

/*
	Boot verifies the parameter flash, and loads the authoritative parameter
	set. When flash is erased, or holds no valid parameter set, defaults are
	used, and a save is required. The latter is reported as an alarm, but
	doesn't stop the daemon.
*/
func (d *Daemon) Boot() (parameter.Status, error) {

	ctx := context.Background()
	status, err := d.store.Verify()

	switch status {

	case parameter.StatusOK:
		if err := d.store.Load(parameter.LoadFull); err != nil {
			log.Errorf("parameters only partially loaded: %v", err)
			return status, err
		}
		return status, nil

	case parameter.StatusErased:
		log.Info("parameter flash is erased, using defaults")
		return status, d.store.ImmediateRestore(ctx)

	default:
		log.Errorf("ALARM: %v, continuing with defaults", err)
		if err := d.store.ImmediateRestore(ctx); err != nil {
			log.Errorf("cannot apply defaults: %v", err)
		}
		return status, err
	}
}

// Serve runs the auto save loop until the daemon is stopped.
func (d *Daemon) Serve() error {

	var tick <-chan time.Time

	if d.autoSave > 0 {
		log.Infof("auto saving modified parameters every %v", d.autoSave)
		ticker := time.NewTicker(d.autoSave)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			d.autoSaveNow()
		case <-d.stop:
			if d.autoSave > 0 {
				d.autoSaveNow()
			}
			return ErrDaemonStopped
		}
	}
}

//
func (d *Daemon) autoSaveNow() {
	if !d.IsModified() {
		return
	}
	log.Debug("auto saving parameters")
	if err := d.Save(context.Background()); err != nil {
		if errors.Is(err, parameter.ErrLockFailed) {
			log.Info("auto save postponed, store busy")
		} else {
			log.Errorf("auto save failed: %v", err)
		}
	}
}

//
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		log.Info("daemon stopping...")
		close(d.stop)
	})
}

// Close closes the flash device, if it can be closed.
func (d *Daemon) Close() error {
	if c, ok := d.dev.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SaveAndResetRequired is called by the store after parameters were reset
// to defaults.
func (d *Daemon) SaveAndResetRequired() {
	log.Warn("parameters reset to defaults, save & reset required")
	atomic.StoreInt32(&d.resetRequired, 1)
	atomic.StoreInt32(&d.dirty, 1)
}

//
func (d *Daemon) IsModified() bool {
	return atomic.LoadInt32(&d.dirty) == 1
}

//
func (d *Daemon) GetStatus() *Status {
	return &Status{
		Store:         d.store.State(),
		Application:   d.store.Application(),
		Modified:      d.IsModified(),
		ResetRequired: atomic.LoadInt32(&d.resetRequired) == 1,
	}
}

//
func (d *Daemon) Entries() []*parameter.Entry {
	return d.store.Registry().Entries()
}

//
func (d *Daemon) Banks() []parameter.BankReport {
	return d.store.Banks()
}

// Verify re-verifies the parameter flash, without loading anything.
func (d *Daemon) Verify() (parameter.Status, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if !d.Lock(ctx) {
		return parameter.StatusUninitialized, parameter.ErrLockFailed
	}
	defer d.Unlock()
	return d.store.Verify()
}

// Save saves all parameters.
func (d *Daemon) Save(ctx context.Context) error {
	if !d.lockWithTimeout(ctx) {
		return parameter.ErrLockFailed
	}
	defer d.Unlock()
	if err := d.store.Save(ctx); err != nil {
		return err
	}
	atomic.StoreInt32(&d.dirty, 0)
	atomic.StoreInt32(&d.resetRequired, 0)
	return nil
}

// Restore resets all parameters to their defaults. Unless immediate is set,
// the parameter flash is erased as well.
func (d *Daemon) Restore(ctx context.Context, immediate bool) error {
	if !d.lockWithTimeout(ctx) {
		return parameter.ErrLockFailed
	}
	defer d.Unlock()
	if immediate {
		return d.store.ImmediateRestore(ctx)
	}
	return d.store.Restore(ctx)
}

// Load loads parameters from the active bank.
func (d *Daemon) Load(ctx context.Context, core bool) error {
	if !d.lockWithTimeout(ctx) {
		return parameter.ErrLockFailed
	}
	defer d.Unlock()
	opt := parameter.LoadFull
	if core {
		opt = parameter.LoadCore
	}
	if err := d.store.Load(opt); err != nil {
		return err
	}
	atomic.StoreInt32(&d.dirty, 0)
	return nil
}

// Get returns the current value of the parameter with the given code.
func (d *Daemon) Get(ctx context.Context, code int16) ([]byte, error) {
	if !d.lockWithTimeout(ctx) {
		return nil, parameter.ErrLockFailed
	}
	defer d.Unlock()
	return d.store.Value(code)
}

// Set sets the value of the parameter with the given code. The change is
// only kept in RAM until the next save.
func (d *Daemon) Set(ctx context.Context, code int16, value []byte) error {
	if !d.lockWithTimeout(ctx) {
		return parameter.ErrLockFailed
	}
	defer d.Unlock()
	if err := d.store.SetValue(code, value); err != nil {
		return err
	}
	atomic.StoreInt32(&d.dirty, 1)
	log.WithField("code", code).Debug("parameter modified")
	return nil
}

// Export writes a snapshot of all parameters to w.
func (d *Daemon) Export(ctx context.Context, w io.Writer) error {
	if !d.lockWithTimeout(ctx) {
		return parameter.ErrLockFailed
	}
	defer d.Unlock()
	return d.store.Export(w)
}

// Import sets parameters from a snapshot, and returns the number of
// parameters that were set.
func (d *Daemon) Import(ctx context.Context, data []byte) (int, error) {
	if !d.lockWithTimeout(ctx) {
		return 0, parameter.ErrLockFailed
	}
	defer d.Unlock()
	n, err := d.store.Import(data)
	if n > 0 {
		atomic.StoreInt32(&d.dirty, 1)
	}
	return n, err
}

// Dump writes all blocks found in bank ix to w.
func (d *Daemon) Dump(w io.Writer, ix int) error {
	return d.store.Dump(w, ix)
}

//
func (d *Daemon) lockWithTimeout(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	return d.Lock(ctx)
}

//
func (d *Daemon) Lock(ctx context.Context) bool {
	select {
	case d.lock <- true:
		log.Trace("daemon locked")
		return true
	case <-ctx.Done():
		log.Trace("locking daemon timed out")
		return false
	}
}

//
func (d *Daemon) Unlock() {
	select {
	case <-d.lock:
		log.Trace("daemon unlocked")
	default:
		log.Trace("daemon was already unlocked")
	}
}
