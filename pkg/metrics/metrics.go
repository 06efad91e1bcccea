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

// Package metrics holds the Prometheus collectors of the parameter store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parmstore"

var (
	// Saves counts save calls by result: ok, error, lock_failed
	Saves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "saves_total",
		Help:      "Number of parameter saves, by result.",
	}, []string{"result"})

	// BankWrites counts completed bank writes, by bank index
	BankWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bank_writes_total",
		Help:      "Number of completely written and signed banks, by bank.",
	}, []string{"bank"})

	Verifies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifies_total",
		Help:      "Number of bank verifications, by resulting status.",
	}, []string{"status"})

	Restores = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restores_total",
		Help:      "Number of factory restores.",
	})

	PagesProgrammed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flash_pages_programmed_total",
		Help:      "Number of flash pages programmed by the chunked writer.",
	})

	FlashErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flash_errors_total",
		Help:      "Number of failed flash erase or program operations.",
	})

	// ActiveBank is -1 while there is no authoritative bank
	ActiveBank = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_bank",
		Help:      "Index of the bank holding the authoritative signature.",
	})

	SignatureTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "signature_timestamp",
		Help:      "Timestamp of the authoritative signature.",
	})
)

func init() {
	prometheus.MustRegister(Saves, BankWrites, Verifies, Restores,
		PagesProgrammed, FlashErrors, ActiveBank, SignatureTimestamp)
	ActiveBank.Set(-1)
}
