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

package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingnotifier/scraper/api"
	"github.com/listingnotifier/scraper/services/web/runs"
	memoryBackend "github.com/listingnotifier/scraper/services/web/runs/backend/memory"
)

type fakeEngine struct {
	testLogin func(ctx context.Context, request api.LoginRequest) error
	scrape    func(ctx context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error)
}

func (e *fakeEngine) TestLogin(ctx context.Context, request api.LoginRequest) error {
	if e.testLogin == nil {
		return nil
	}
	return e.testLogin(ctx, request)
}

func (e *fakeEngine) Scrape(ctx context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error) {
	if e.scrape == nil {
		return &api.ScrapeResult{}, nil
	}
	return e.scrape(ctx, request)
}

func createTestServer(
	t *testing.T,
	engine *fakeEngine,
	profiles map[string]api.ScrapeDefaults,
	secret string,
) (*Server, *runs.Manager) {
	t.Helper()

	backend, err := memoryBackend.CreateMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(backend.Destroy)

	runManager := runs.NewManager(context.Background(), backend, engine.Scrape, 2)

	server, err := New(0, engine, runManager, profiles, secret)
	require.NoError(t, err)
	return server, runManager
}

func doRequest(server *Server, method string, path string, body string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, req)
	return recorder
}

func TestGetInfo(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "")

	recorder := doRequest(server, http.MethodGet, "/", "", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Listing Scraper")
}

func TestGetHealth(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "")

	recorder := doRequest(server, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, recorder.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "listing-scraper", health.Service)
}

func TestAuthRequired(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "a secret")

	recorder := doRequest(server, http.MethodGet, "/runs", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doRequest(server, http.MethodGet, "/runs", "", "wrong secret")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doRequest(server, http.MethodGet, "/runs", "", "a secret")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestAuthDisabled(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "")

	recorder := doRequest(server, http.MethodGet, "/runs", "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestAuthWithIssuedToken(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "a secret")

	recorder := doRequest(server, http.MethodPost, "/auth/token", `{"subject":"nightly job"}`, "a secret")
	require.Equal(t, http.StatusOK, recorder.Code)

	var issued tokenResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	recorder = doRequest(server, http.MethodGet, "/runs", "", issued.Token)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestTestLogin(t *testing.T) {
	engine := &fakeEngine{
		testLogin: func(_ context.Context, request api.LoginRequest) error {
			if request.Password != "good" {
				return fmt.Errorf("bad credentials")
			}
			return nil
		},
	}
	server, _ := createTestServer(t, engine, nil, "")

	recorder := doRequest(server, http.MethodPost, "/test-login", `{"username":"jane","password":"good"}`, "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(server, http.MethodPost, "/test-login", `{"username":"jane","password":"bad"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "login failed")
}

func TestTestLoginValidation(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "")

	recorder := doRequest(server, http.MethodPost, "/test-login", `{"username":"jane"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestScrapeAppliesDefaults(t *testing.T) {
	var scraped api.ScrapeRequest
	engine := &fakeEngine{
		scrape: func(_ context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error) {
			scraped = request
			return &api.ScrapeResult{
				Listings:     []api.Listing{{"Address": "123 Main St"}},
				TotalCount:   1,
				PagesScraped: 1,
			}, nil
		},
	}
	server, _ := createTestServer(t, engine, nil, "")

	recorder := doRequest(server, http.MethodPost, "/scrape", `{"username":"jane","password":"pw"}`, "")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, api.BuiltinDefaults.SavedSearchName, scraped.SavedSearchName)
	assert.Equal(t, api.BuiltinDefaults.TimeRange, scraped.TimeRange)
	assert.Equal(t, api.BuiltinDefaults.MaxPages, scraped.MaxPages)

	var result api.ScrapeResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalCount)
}

func TestScrapeAppliesProfile(t *testing.T) {
	var scraped api.ScrapeRequest
	engine := &fakeEngine{
		scrape: func(_ context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error) {
			scraped = request
			return &api.ScrapeResult{}, nil
		},
	}
	profiles := map[string]api.ScrapeDefaults{
		"weekly": {SavedSearchName: "Weekly digest", TimeRange: "7d", MaxPages: 5},
	}
	server, _ := createTestServer(t, engine, profiles, "")

	recorder := doRequest(
		server,
		http.MethodPost,
		"/scrape",
		`{"username":"jane","password":"pw","profile":"weekly"}`,
		"",
	)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Weekly digest", scraped.SavedSearchName)
	assert.Equal(t, 5, scraped.MaxPages)
}

func TestScrapeUnknownProfile(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "")

	recorder := doRequest(
		server,
		http.MethodPost,
		"/scrape",
		`{"username":"jane","password":"pw","profile":"nope"}`,
		"",
	)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "unknown scrape profile")
}

func TestScrapeFailure(t *testing.T) {
	engine := &fakeEngine{
		scrape: func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
			return nil, fmt.Errorf("the portal is down")
		},
	}
	server, _ := createTestServer(t, engine, nil, "")

	recorder := doRequest(server, http.MethodPost, "/scrape", `{"username":"jane","password":"pw"}`, "")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "the portal is down")
}

func TestRunLifecycle(t *testing.T) {
	engine := &fakeEngine{
		scrape: func(_ context.Context, _ api.ScrapeRequest) (*api.ScrapeResult, error) {
			return &api.ScrapeResult{
				Listings:     []api.Listing{{"Address": "123 Main St"}},
				TotalCount:   1,
				PagesScraped: 1,
			}, nil
		},
	}
	server, runManager := createTestServer(t, engine, nil, "")

	recorder := doRequest(server, http.MethodPost, "/runs", `{"username":"jane","password":"pw"}`, "")
	require.Equal(t, http.StatusAccepted, recorder.Code)

	var started startRunResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &started))
	require.NotEmpty(t, started.RunID)

	// let the background run finish
	runManager.Wait()

	recorder = doRequest(server, http.MethodGet, "/runs", "", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var page listRunsResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	require.Len(t, page.Runs, 1)
	assert.Equal(t, api.RunSucceeded, page.Runs[0].Status)
	// run listings stay out of the run list
	assert.NotContains(t, recorder.Body.String(), "123 Main St")

	recorder = doRequest(server, http.MethodGet, "/runs/"+started.RunID, "", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var info api.RunInfo
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &info))
	assert.Equal(t, api.RunSucceeded, info.Status)
	require.Len(t, info.Listings, 1)
	assert.Equal(t, "123 Main St", info.Listings[0]["Address"])

	recorder = doRequest(server, http.MethodDelete, "/runs/"+started.RunID, "", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(server, http.MethodGet, "/runs/"+started.RunID, "", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetUnknownRun(t *testing.T) {
	server, _ := createTestServer(t, &fakeEngine{}, nil, "")

	recorder := doRequest(server, http.MethodGet, "/runs/nope", "", "")

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "nope")
}
