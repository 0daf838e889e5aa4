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

// Package api holds the data model shared between the web service, the run
// store and the CLI client.
package api

import (
	"fmt"
	"time"

	"github.com/imdario/mergo"
)

// Listing is a single exported row, keyed by the portal's CSV column names.
type Listing map[string]string

// ScrapeDefaults are the parameters of a scrape that can be defaulted or
// provided by a named profile.
type ScrapeDefaults struct {
	TimeRange       string `json:"time_range,omitempty" yaml:"time_range"`
	SavedSearchName string `json:"saved_search_name,omitempty" yaml:"saved_search_name"`
	MaxPages        int    `json:"max_pages,omitempty" yaml:"max_pages"`
}

// BuiltinDefaults mirror the portal's "new listings" weekly digest.
var BuiltinDefaults = ScrapeDefaults{
	TimeRange:       "7d",
	SavedSearchName: "New Listings - last week",
	MaxPages:        30,
}

type ScrapeRequest struct {
	Username string `json:"username" validate:"required" description:"Portal account username"`
	Password string `json:"password" validate:"required" description:"Portal account password"`
	// Profile names an entry of the profiles file, its values are applied
	// before the builtin defaults.
	Profile string `json:"profile,omitempty" description:"Named scrape profile to apply"`
	ScrapeDefaults
}

// ApplyDefaults fills the zero fields of the request from, in order, each
// given defaults set and finally the builtin ones.
func (r *ScrapeRequest) ApplyDefaults(defaults ...ScrapeDefaults) error {
	for _, d := range append(defaults, BuiltinDefaults) {
		if err := mergo.Merge(&r.ScrapeDefaults, d); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint identifies the portal content a request targets; two requests
// with the same fingerprint would scrape the same data. The password is left
// out on purpose: within the result cache TTL a repeat request is served
// without logging in again, so a changed or wrong password only surfaces once
// the cached entry expires.
func (r *ScrapeRequest) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%d", r.Username, r.SavedSearchName, r.TimeRange, r.MaxPages)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required" description:"Portal account username"`
	Password string `json:"password" validate:"required" description:"Portal account password"`
}

type ScrapeResult struct {
	Listings     []Listing `json:"listings"`
	TotalCount   int       `json:"total_count"`
	PagesScraped int       `json:"pages_scraped"`
}

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunSummary is what run listings return, the listing payload stays in the store.
type RunSummary struct {
	RunID           string     `json:"run_id"`
	Status          RunStatus  `json:"status"`
	Username        string     `json:"username"`
	SavedSearchName string     `json:"saved_search_name"`
	TimeRange       string     `json:"time_range"`
	MaxPages        int        `json:"max_pages"`
	TotalCount      int        `json:"total_count"`
	PagesScraped    int        `json:"pages_scraped"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

type RunInfo struct {
	RunSummary
	Listings []Listing `json:"listings,omitempty"`
}
