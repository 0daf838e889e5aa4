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
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/listingnotifier/scraper/api"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored scrape runs",
}

type runsPage struct {
	Runs     []*api.RunSummary `json:"runs"`
	NextFrom int               `json:"next_from"`
}

func runListRunsCmd(client *resty.Client, count int) (*runsPage, error) {
	var page runsPage
	resp, err := client.R().
		SetQueryParam("count", strconv.Itoa(count)).
		SetResult(&page).
		Get("/runs")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &page, nil
}

func runGetRunCmd(client *resty.Client, runID string) (*api.RunInfo, error) {
	var run api.RunInfo
	resp, err := client.R().
		SetPathParam("run_id", runID).
		SetResult(&run).
		Get("/runs/{run_id}")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &run, nil
}

func runDeleteRunCmd(client *resty.Client, runID string) error {
	resp, err := client.R().
		SetPathParam("run_id", runID).
		Delete("/runs/{run_id}")
	return checkResponse(resp, err)
}

var runsListCount int

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		page, err := runListRunsCmd(apiClient(), runsListCount)
		if err != nil {
			return err
		}

		var output []string
		row := []string{"ID", "STATUS", "SEARCH", "LISTINGS", "STARTED"}
		output = append(output, strings.Join(row, "|"))

		for _, run := range page.Runs {
			var row = []string{
				run.RunID,
				string(run.Status),
				run.SavedSearchName,
				strconv.Itoa(run.TotalCount),
				humanize.Time(run.StartedAt),
			}
			output = append(output, strings.Join(row, "|"))
		}
		fmt.Println(columnize.SimpleFormat(output))
		return nil
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get RUN_ID",
	Short: "Retrieve a run, including its listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := runGetRunCmd(apiClient(), args[0])
		if err != nil {
			return err
		}

		return printJSON(run)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete RUN_ID",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runDeleteRunCmd(apiClient(), args[0]); err != nil {
			return err
		}

		fmt.Printf("run %s deleted\n", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsListCount, "count", 20, "Maximum number of runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsGetCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}
