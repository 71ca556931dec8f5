// Copyright 2024 The Docdb Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package metric wraps github.com/prometheus/client_golang with the small
// surface the MVCC coordinator needs, in the spirit of cockroach's
// pkg/util/metric package wrapping client_golang types for registration
// under a single per-subsystem Registry.
package metric

import "github.com/prometheus/client_golang/prometheus"

// Registry collects the metrics exposed by one MvccManager instance so the
// caller can register them with a process-wide prometheus.Registerer under
// a tablet-specific set of labels.
type Registry struct {
	InFlightTransactions prometheus.Gauge
	WaitersBlocked       prometheus.Gauge
	CleanSnapshotWait    prometheus.Histogram
	CommitsTotal         prometheus.Counter
	AbortsTotal          prometheus.Counter
}

// NewRegistry constructs a Registry with metrics labeled by tabletID. It
// does not register them with any prometheus.Registerer; call MustRegister
// on the returned Registry's fields, or use RegisterWith.
func NewRegistry(tabletID string) *Registry {
	labels := prometheus.Labels{"tablet": tabletID}
	return &Registry{
		InFlightTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "docdb",
			Subsystem:   "mvcc",
			Name:        "in_flight_transactions",
			Help:        "Number of transactions currently tracked as in-flight (RESERVED or APPLYING).",
			ConstLabels: labels,
		}),
		WaitersBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "docdb",
			Subsystem:   "mvcc",
			Name:        "waiters_blocked",
			Help:        "Number of goroutines currently blocked in WaitForCleanSnapshotAtTimestamp or WaitForApplyingTransactionsToCommit.",
			ConstLabels: labels,
		}),
		CleanSnapshotWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "docdb",
			Subsystem:   "mvcc",
			Name:        "clean_snapshot_wait_seconds",
			Help:        "Time spent blocked in WaitForCleanSnapshotAtTimestamp.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "docdb",
			Subsystem:   "mvcc",
			Name:        "commits_total",
			Help:        "Total number of transactions committed (online or offline).",
			ConstLabels: labels,
		}),
		AbortsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "docdb",
			Subsystem:   "mvcc",
			Name:        "aborts_total",
			Help:        "Total number of transactions aborted.",
			ConstLabels: labels,
		}),
	}
}

// RegisterWith registers every metric in the Registry with reg.
func (r *Registry) RegisterWith(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		r.InFlightTransactions, r.WaitersBlocked, r.CleanSnapshotWait,
		r.CommitsTotal, r.AbortsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
