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
	"fmt"
	"net/http"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/listingnotifier/scraper/api"
)

func TestListRunsCommandWithStatusCode(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpResponse := map[string]interface{}{
		"runs": []map[string]interface{}{
			{
				"run_id":            "00000000000000000001-aaaaaaaa",
				"status":            "succeeded",
				"saved_search_name": "New Listings - last week",
				"total_count":       42,
			},
			{
				"run_id":            "00000000000000000002-bbbbbbbb",
				"status":            "failed",
				"saved_search_name": "New Listings - last week",
				"total_count":       0,
			},
		},
		"next_from": 3,
	}

	errorResponse := map[string]interface{}{
		"message": "details",
	}

	var tests = []struct {
		statusCode   int
		expectedIDs  []string
		hasErr       bool
		httpResponse map[string]interface{}
	}{
		{200, []string{"00000000000000000001-aaaaaaaa", "00000000000000000002-bbbbbbbb"}, false, httpResponse},
		{401, nil, true, errorResponse},
		{500, nil, true, errorResponse},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.statusCode), func(t *testing.T) {
			httpmock.Reset()
			httpmock.RegisterResponder("GET", `/runs`,
				func(req *http.Request) (*http.Response, error) {
					return httpmock.NewJsonResponse(tt.statusCode, tt.httpResponse)
				},
			)

			page, err := runListRunsCmd(client, 20)

			assert.Equal(t, 1, httpmock.GetTotalCallCount())
			if tt.hasErr {
				assert.Error(t, err)
				assert.Nil(t, page)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 3, page.NextFrom)
			var ids []string
			for _, run := range page.Runs {
				ids = append(ids, run.RunID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

func TestGetRunCommand(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `/runs/00000000000000000001-aaaaaaaa`,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"run_id":      "00000000000000000001-aaaaaaaa",
				"status":      "succeeded",
				"total_count": 1,
				"listings": []map[string]string{
					{"Address": "123 Main St", "Price": "450000"},
				},
			})
		},
	)

	run, err := runGetRunCmd(client, "00000000000000000001-aaaaaaaa")

	assert.NoError(t, err)
	assert.Equal(t, api.RunSucceeded, run.Status)
	assert.Len(t, run.Listings, 1)
	assert.Equal(t, "123 Main St", run.Listings[0]["Address"])
}

func TestGetRunCommandNotFound(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `/runs/nope`,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(404, map[string]interface{}{
				"message": "unknown run [nope]",
			})
		},
	)

	run, err := runGetRunCmd(client, "nope")

	assert.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "unknown run [nope]")
}

func TestDeleteRunCommand(t *testing.T) {
	client := resty.New()

	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("DELETE", `/runs/00000000000000000001-aaaaaaaa`,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"message": "Run deleted",
			})
		},
	)

	err := runDeleteRunCmd(client, "00000000000000000001-aaaaaaaa")

	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
