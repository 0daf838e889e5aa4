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

package client

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingnotifier/scraper/api"
)

func TestScrapeCommand(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", `/scrape`,
		func(req *http.Request) (*http.Response, error) {
			var request api.ScrapeRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&request))
			assert.Equal(t, "jane", request.Username)
			assert.Equal(t, "weekly", request.Profile)

			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"listings": []map[string]string{
					{"Address": "123 Main St"},
					{"Address": "456 Oak Ave"},
				},
				"total_count":   2,
				"pages_scraped": 1,
			})
		},
	)

	result, err := runScrapeCmd(client, api.ScrapeRequest{
		Username: "jane",
		Password: "secret",
		Profile:  "weekly",
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.Len(t, result.Listings, 2)
}

func TestScrapeCommandFailure(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", `/scrape`,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(500, map[string]interface{}{
				"message": "scrape failed: login failed",
			})
		},
	)

	result, err := runScrapeCmd(client, api.ScrapeRequest{Username: "jane", Password: "bad"})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "login failed")
}

func TestStartRunCommand(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", `/runs`,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(202, map[string]interface{}{
				"run_id": "00000000000000000001-aaaaaaaa",
				"status": "pending",
			})
		},
	)

	summary, err := runStartRunCmd(client, api.ScrapeRequest{Username: "jane", Password: "secret"})

	assert.NoError(t, err)
	assert.Equal(t, "00000000000000000001-aaaaaaaa", summary.RunID)
	assert.Equal(t, api.RunPending, summary.Status)
}

func TestTestLoginCommand(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", `/test-login`,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"message": "Login successful",
				"success": true,
			})
		},
	)

	err := runTestLoginCmd(client, api.LoginRequest{Username: "jane", Password: "secret"})

	assert.NoError(t, err)
}
