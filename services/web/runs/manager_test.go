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

package runs

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingnotifier/scraper/api"
	"github.com/listingnotifier/scraper/services/web/runs/backend/memory"
)

func newTestRequest() api.ScrapeRequest {
	request := api.ScrapeRequest{
		Username: "agent.smith",
		Password: "secret",
	}
	_ = request.ApplyDefaults()
	return request
}

func TestRunSucceeds(t *testing.T) {
	b, err := memory.CreateMemoryBackend()
	require.NoError(t, err)
	defer b.Destroy()

	scrape := func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
		return &api.ScrapeResult{
			Listings:     []api.Listing{{"Address": "12 Main St"}},
			TotalCount:   1,
			PagesScraped: 1,
		}, nil
	}

	manager := NewManager(context.Background(), b, scrape, 2)
	summary, err := manager.StartRun(newTestRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, api.RunPending, summary.Status)
	assert.Equal(t, "agent.smith", summary.Username)

	manager.Wait()

	info, err := manager.GetRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, api.RunSucceeded, info.Status)
	assert.Equal(t, 1, info.TotalCount)
	assert.Equal(t, 1, info.PagesScraped)
	require.NotNil(t, info.FinishedAt)
	require.Len(t, info.Listings, 1)
	assert.Equal(t, "12 Main St", info.Listings[0]["Address"])
	assert.Empty(t, info.Error)
}

func TestRunFails(t *testing.T) {
	b, err := memory.CreateMemoryBackend()
	require.NoError(t, err)
	defer b.Destroy()

	scrape := func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
		return nil, errors.New("login form still present after login attempt")
	}

	manager := NewManager(context.Background(), b, scrape, 2)
	summary, err := manager.StartRun(newTestRequest())
	require.NoError(t, err)

	manager.Wait()

	info, err := manager.GetRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, api.RunFailed, info.Status)
	assert.Contains(t, info.Error, "login form still present")
	assert.Empty(t, info.Listings)
}

func TestRunsAreBounded(t *testing.T) {
	b, err := memory.CreateMemoryBackend()
	require.NoError(t, err)
	defer b.Destroy()

	var concurrent int32
	var maxObserved int32
	release := make(chan struct{})
	scrape := func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
		current := atomic.AddInt32(&concurrent, 1)
		for {
			observed := atomic.LoadInt32(&maxObserved)
			if current <= observed || atomic.CompareAndSwapInt32(&maxObserved, observed, current) {
				break
			}
		}
		<-release
		atomic.AddInt32(&concurrent, -1)
		return &api.ScrapeResult{Listings: []api.Listing{}}, nil
	}

	manager := NewManager(context.Background(), b, scrape, 2)
	for i := 0; i < 5; i++ {
		_, err := manager.StartRun(newTestRequest())
		require.NoError(t, err)
	}
	close(release)
	manager.Wait()

	assert.LessOrEqual(t, maxObserved, int32(2))

	summaries, _, err := manager.ListRuns(context.Background(), 0, -1)
	require.NoError(t, err)
	require.Len(t, summaries, 5)
	for _, summary := range summaries {
		assert.Equal(t, api.RunSucceeded, summary.Status)
	}
}

func TestDeleteRun(t *testing.T) {
	b, err := memory.CreateMemoryBackend()
	require.NoError(t, err)
	defer b.Destroy()

	scrape := func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
		return &api.ScrapeResult{Listings: []api.Listing{}}, nil
	}

	manager := NewManager(context.Background(), b, scrape, 1)
	summary, err := manager.StartRun(newTestRequest())
	require.NoError(t, err)
	manager.Wait()

	require.NoError(t, manager.DeleteRun(context.Background(), summary.RunID))
	_, err = manager.GetRun(context.Background(), summary.RunID)
	assert.Error(t, err)
}

func TestStartRunSummaryIsStable(t *testing.T) {
	b, err := memory.CreateMemoryBackend()
	require.NoError(t, err)
	defer b.Destroy()

	scrape := func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
		return &api.ScrapeResult{Listings: []api.Listing{}, TotalCount: 1, PagesScraped: 1}, nil
	}

	// The returned summary is a snapshot of the pending run, the goroutine
	// finishing concurrently must not show through it.
	manager := NewManager(context.Background(), b, scrape, 4)
	for i := 0; i < 200; i++ {
		summary, err := manager.StartRun(newTestRequest())
		require.NoError(t, err)
		assert.Equal(t, api.RunPending, summary.Status)
		assert.Nil(t, summary.FinishedAt)
		assert.Empty(t, summary.Error)
		assert.Zero(t, summary.TotalCount)
	}
	manager.Wait()
}
