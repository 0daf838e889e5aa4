// Copyright 2023 Listing Notifier <dev@listingnotifier.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Number of scrape runs, by final status.",
		},
		[]string{"status"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall clock duration of scrape runs.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	PagesExported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_exported_total",
			Help: "Number of result pages exported from the portal.",
		},
	)

	LoginFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_login_failures_total",
			Help: "Number of failed portal logins.",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_result_cache_hits_total",
			Help: "Number of scrape requests served from the result cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RunDuration,
		PagesExported,
		LoginFailures,
		CacheHits,
	)
}
