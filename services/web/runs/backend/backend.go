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

// Package backend defines the interface for the run stores.
package backend

import (
	"context"
	"time"

	"github.com/listingnotifier/scraper/api"
)

// RunRecord is a stored scrape run. Credentials are never part of it.
type RunRecord struct {
	RunID           string
	RunIdx          uint64 // creation sequence, assigned by the backend
	Status          api.RunStatus
	Username        string
	SavedSearchName string
	TimeRange       string
	MaxPages        int
	StartedAt       time.Time
	FinishedAt      *time.Time
	Error           string
	Result          *api.ScrapeResult
}

// RunFilter selects runs by status, an empty filter selects everything.
type RunFilter struct {
	Statuses []api.RunStatus
}

func (f RunFilter) Selects(record *RunRecord) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if record.Status == status {
			return true
		}
	}
	return false
}

// RetrieveRunsResult is a page of runs ordered by creation, NextRunIdx is the
// `fromRunIdx` to pass to retrieve the next page.
type RetrieveRunsResult struct {
	Runs       []*RunRecord
	NextRunIdx int
}

type Backend interface {
	// CreateRun stores a new run and assigns its RunIdx.
	CreateRun(ctx context.Context, record *RunRecord) error

	// UpdateRun replaces the stored record of an existing run.
	UpdateRun(ctx context.Context, record *RunRecord) error

	// RetrieveRuns returns at most count runs matching the filter, ordered by
	// creation, starting at fromRunIdx. count <= 0 means no limit.
	RetrieveRuns(ctx context.Context, filter RunFilter, fromRunIdx int, count int) (RetrieveRunsResult, error)

	// GetRun returns the run with the given id.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// DeleteRun removes the run with the given id.
	DeleteRun(ctx context.Context, runID string) error

	// Destroy terminates the underlying storage
	Destroy()
}
