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

// Package test implements the test suite shared by all the run store
// backends.
package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingnotifier/scraper/api"
	"github.com/listingnotifier/scraper/services/web/runs/backend"
)

func generateRunRecord(idx int) *backend.RunRecord {
	return &backend.RunRecord{
		RunID:           fmt.Sprintf("run-%03d", idx),
		Status:          api.RunPending,
		Username:        "agent.smith",
		SavedSearchName: "New Listings - last week",
		TimeRange:       "7d",
		MaxPages:        30,
		StartedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

// RunSuite runs the backend test suite against the backend built by
// createBackend.
func RunSuite(t *testing.T, createBackend func() backend.Backend) {
	t.Run("TestCreateAndGetRun", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		record := generateRunRecord(1)
		require.NoError(t, b.CreateRun(context.Background(), record))
		assert.Equal(t, uint64(1), record.RunIdx)

		retrieved, err := b.GetRun(context.Background(), record.RunID)
		require.NoError(t, err)
		assert.Equal(t, record.RunID, retrieved.RunID)
		assert.Equal(t, api.RunPending, retrieved.Status)
		assert.Equal(t, record.Username, retrieved.Username)
		assert.True(t, record.StartedAt.Equal(retrieved.StartedAt))
		assert.Nil(t, retrieved.FinishedAt)
		assert.Nil(t, retrieved.Result)
	})

	t.Run("TestCreateRunTwice", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		record := generateRunRecord(1)
		require.NoError(t, b.CreateRun(context.Background(), record))
		assert.Error(t, b.CreateRun(context.Background(), generateRunRecord(1)))
	})

	t.Run("TestGetUnknownRun", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		_, err := b.GetRun(context.Background(), "no-such-run")
		var unknownRunErr *backend.UnknownRunError
		require.ErrorAs(t, err, &unknownRunErr)
		assert.Equal(t, "no-such-run", unknownRunErr.RunID)
	})

	t.Run("TestUpdateRun", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		record := generateRunRecord(1)
		require.NoError(t, b.CreateRun(context.Background(), record))

		finishedAt := record.StartedAt.Add(42 * time.Second)
		record.Status = api.RunSucceeded
		record.FinishedAt = &finishedAt
		record.Result = &api.ScrapeResult{
			Listings: []api.Listing{
				{"Address": "12 Main St", "Price": "150000"},
			},
			TotalCount:   1,
			PagesScraped: 1,
		}
		require.NoError(t, b.UpdateRun(context.Background(), record))

		retrieved, err := b.GetRun(context.Background(), record.RunID)
		require.NoError(t, err)
		assert.Equal(t, api.RunSucceeded, retrieved.Status)
		require.NotNil(t, retrieved.FinishedAt)
		assert.True(t, finishedAt.Equal(*retrieved.FinishedAt))
		require.NotNil(t, retrieved.Result)
		assert.Equal(t, 1, retrieved.Result.TotalCount)
		assert.Equal(t, "12 Main St", retrieved.Result.Listings[0]["Address"])
	})

	t.Run("TestUpdateUnknownRun", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		var unknownRunErr *backend.UnknownRunError
		err := b.UpdateRun(context.Background(), generateRunRecord(1))
		require.ErrorAs(t, err, &unknownRunErr)
	})

	t.Run("TestRetrieveRunsOrdering", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		for i := 1; i <= 5; i++ {
			require.NoError(t, b.CreateRun(context.Background(), generateRunRecord(i)))
		}

		result, err := b.RetrieveRuns(context.Background(), backend.RunFilter{}, 0, -1)
		require.NoError(t, err)
		require.Len(t, result.Runs, 5)
		for i, record := range result.Runs {
			assert.Equal(t, fmt.Sprintf("run-%03d", i+1), record.RunID)
			assert.Equal(t, uint64(i+1), record.RunIdx)
		}
	})

	t.Run("TestRetrieveRunsPagination", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		for i := 1; i <= 5; i++ {
			require.NoError(t, b.CreateRun(context.Background(), generateRunRecord(i)))
		}

		firstPage, err := b.RetrieveRuns(context.Background(), backend.RunFilter{}, 0, 2)
		require.NoError(t, err)
		require.Len(t, firstPage.Runs, 2)
		assert.Equal(t, "run-001", firstPage.Runs[0].RunID)
		assert.Equal(t, "run-002", firstPage.Runs[1].RunID)

		secondPage, err := b.RetrieveRuns(context.Background(), backend.RunFilter{}, firstPage.NextRunIdx, 2)
		require.NoError(t, err)
		require.Len(t, secondPage.Runs, 2)
		assert.Equal(t, "run-003", secondPage.Runs[0].RunID)
		assert.Equal(t, "run-004", secondPage.Runs[1].RunID)

		lastPage, err := b.RetrieveRuns(context.Background(), backend.RunFilter{}, secondPage.NextRunIdx, 2)
		require.NoError(t, err)
		require.Len(t, lastPage.Runs, 1)
		assert.Equal(t, "run-005", lastPage.Runs[0].RunID)
	})

	t.Run("TestRetrieveRunsStatusFilter", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		for i := 1; i <= 4; i++ {
			record := generateRunRecord(i)
			require.NoError(t, b.CreateRun(context.Background(), record))
			if i%2 == 0 {
				record.Status = api.RunFailed
				require.NoError(t, b.UpdateRun(context.Background(), record))
			}
		}

		result, err := b.RetrieveRuns(
			context.Background(),
			backend.RunFilter{Statuses: []api.RunStatus{api.RunFailed}},
			0,
			-1,
		)
		require.NoError(t, err)
		require.Len(t, result.Runs, 2)
		assert.Equal(t, "run-002", result.Runs[0].RunID)
		assert.Equal(t, "run-004", result.Runs[1].RunID)
	})

	t.Run("TestDeleteRun", func(t *testing.T) {
		b := createBackend()
		defer b.Destroy()

		for i := 1; i <= 3; i++ {
			require.NoError(t, b.CreateRun(context.Background(), generateRunRecord(i)))
		}

		require.NoError(t, b.DeleteRun(context.Background(), "run-002"))

		var unknownRunErr *backend.UnknownRunError
		_, err := b.GetRun(context.Background(), "run-002")
		require.ErrorAs(t, err, &unknownRunErr)

		require.ErrorAs(t, b.DeleteRun(context.Background(), "run-002"), &unknownRunErr)

		result, err := b.RetrieveRuns(context.Background(), backend.RunFilter{}, 0, -1)
		require.NoError(t, err)
		require.Len(t, result.Runs, 2)
		assert.Equal(t, "run-001", result.Runs[0].RunID)
		assert.Equal(t, "run-003", result.Runs[1].RunID)
	})
}
