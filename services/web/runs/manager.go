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

// Package runs manages the lifecycle of background scrape runs on top of a
// run store backend.
package runs

import (
	"context"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/sirupsen/logrus"

	"github.com/listingnotifier/scraper/api"
	"github.com/listingnotifier/scraper/services/web/runs/backend"
	"github.com/listingnotifier/scraper/utils"
	"github.com/listingnotifier/scraper/utils/metrics"
)

var log = logrus.WithField("component", "runs")

// ScrapeFunc executes a scrape, it is the seam between the run manager and
// the scrape engine.
type ScrapeFunc func(ctx context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error)

type Manager struct {
	ctx       context.Context
	backend   backend.Backend
	scrape    ScrapeFunc
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a run manager executing at most maxConcurrent runs at a
// time. Background runs inherit cancellation from ctx.
func NewManager(ctx context.Context, b backend.Backend, scrape ScrapeFunc, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		ctx:       ctx,
		backend:   b,
		scrape:    scrape,
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// StartRun stores a pending run and schedules its execution. The request is
// expected to have its defaults applied.
func (m *Manager) StartRun(request api.ScrapeRequest) (*api.RunSummary, error) {
	record := &backend.RunRecord{
		RunID:           utils.NewID(),
		Status:          api.RunPending,
		Username:        request.Username,
		SavedSearchName: request.SavedSearchName,
		TimeRange:       request.TimeRange,
		MaxPages:        request.MaxPages,
		StartedAt:       time.Now().UTC(),
	}
	if err := m.backend.CreateRun(m.ctx, record); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"run_id":       record.RunID,
		"username":     record.Username,
		"saved_search": record.SavedSearchName,
	}).Info("run scheduled")

	// The goroutine owns the record from here on, build the summary first.
	summary := recordToSummary(record)

	m.wg.Add(1)
	go m.executeRun(record, request)

	return summary, nil
}

func (m *Manager) executeRun(record *backend.RunRecord, request api.ScrapeRequest) {
	defer m.wg.Done()

	select {
	case m.semaphore <- struct{}{}:
		defer func() { <-m.semaphore }()
	case <-m.ctx.Done():
		m.finishRun(record, nil, m.ctx.Err())
		return
	}

	record.Status = api.RunRunning
	record.StartedAt = time.Now().UTC()
	if err := m.backend.UpdateRun(m.ctx, record); err != nil {
		log.WithField("run_id", record.RunID).WithField("error", err).Error("unable to mark the run running")
	}

	result, err := m.scrape(m.ctx, request)
	m.finishRun(record, result, err)
}

func (m *Manager) finishRun(record *backend.RunRecord, result *api.ScrapeResult, scrapeErr error) {
	finishedAt := time.Now().UTC()
	record.FinishedAt = &finishedAt
	if scrapeErr != nil {
		record.Status = api.RunFailed
		record.Error = scrapeErr.Error()
	} else {
		record.Status = api.RunSucceeded
		record.Result = result
	}

	metrics.RunsTotal.WithLabelValues(string(record.Status)).Inc()
	metrics.RunDuration.Observe(finishedAt.Sub(record.StartedAt).Seconds())

	// Store the final state with the run manager's own lifetime, not the
	// scrape's, so a cancelled run still gets recorded.
	err := m.backend.UpdateRun(context.Background(), record)
	if err != nil {
		log.WithField("run_id", record.RunID).WithField("error", err).Error("unable to store the run result")
	}

	log.WithFields(logrus.Fields{
		"run_id": record.RunID,
		"status": record.Status,
	}).Info("run finished")
}

// ListRuns returns a page of run summaries, ordered by creation.
func (m *Manager) ListRuns(ctx context.Context, fromRunIdx int, count int) ([]*api.RunSummary, int, error) {
	result, err := m.backend.RetrieveRuns(ctx, backend.RunFilter{}, fromRunIdx, count)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]*api.RunSummary, len(result.Runs))
	for idx, record := range result.Runs {
		summaries[idx] = recordToSummary(record)
	}
	return summaries, result.NextRunIdx, nil
}

// GetRun returns the full run record, including its listings.
func (m *Manager) GetRun(ctx context.Context, runID string) (*api.RunInfo, error) {
	record, err := m.backend.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	info := &api.RunInfo{RunSummary: *recordToSummary(record)}
	if record.Result != nil {
		info.Listings = record.Result.Listings
	}
	return info, nil
}

func (m *Manager) DeleteRun(ctx context.Context, runID string) error {
	return m.backend.DeleteRun(ctx, runID)
}

// Wait blocks until all the scheduled runs have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func recordToSummary(record *backend.RunRecord) *api.RunSummary {
	summary := &api.RunSummary{}
	if err := copier.Copy(summary, record); err != nil {
		log.WithField("error", err).Error("unable to convert a run record")
	}
	if record.Result != nil {
		summary.TotalCount = record.Result.TotalCount
		summary.PagesScraped = record.Result.PagesScraped
	}
	return summary
}
