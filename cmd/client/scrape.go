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

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/listingnotifier/scraper/api"
)

func runScrapeCmd(client *resty.Client, request api.ScrapeRequest) (*api.ScrapeResult, error) {
	var result api.ScrapeResult
	resp, err := client.R().
		SetBody(request).
		SetResult(&result).
		Post("/scrape")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

func runStartRunCmd(client *resty.Client, request api.ScrapeRequest) (*api.RunSummary, error) {
	var summary api.RunSummary
	resp, err := client.R().
		SetBody(request).
		SetResult(&summary).
		Post("/runs")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &summary, nil
}

func runTestLoginCmd(client *resty.Client, request api.LoginRequest) error {
	resp, err := client.R().
		SetBody(request).
		Post("/test-login")
	return checkResponse(resp, err)
}

var scrapeRequest api.ScrapeRequest
var scrapeAsync bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a scrape and print the merged listings as json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		if scrapeAsync {
			summary, err := runStartRunCmd(apiClient(), scrapeRequest)
			if err != nil {
				return err
			}

			fmt.Printf("run %s started, retrieve it with `scraper client runs get %s`\n",
				summary.RunID, summary.RunID)
			return nil
		}

		result, err := runScrapeCmd(apiClient(), scrapeRequest)
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

var loginRequest api.LoginRequest

var testLoginCmd = &cobra.Command{
	Use:   "test-login",
	Short: "Check portal credentials without scraping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		if err := runTestLoginCmd(apiClient(), loginRequest); err != nil {
			return err
		}

		fmt.Println("login successful")
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeRequest.Username, "username", "", "Portal account username")
	scrapeCmd.Flags().StringVar(&scrapeRequest.Password, "password", "", "Portal account password")
	scrapeCmd.Flags().StringVar(&scrapeRequest.Profile, "profile", "", "Named scrape profile to apply")
	scrapeCmd.Flags().StringVar(&scrapeRequest.SavedSearchName, "saved-search", "", "Saved power search to run")
	scrapeCmd.Flags().StringVar(&scrapeRequest.TimeRange, "time-range", "", "Report time range, eg. 7d")
	scrapeCmd.Flags().IntVar(&scrapeRequest.MaxPages, "max-pages", 0, "Maximum number of result pages to export")
	scrapeCmd.Flags().BoolVar(&scrapeAsync, "async", false, "Start a background run instead of waiting for the result")
	_ = scrapeCmd.MarkFlagRequired("username")
	_ = scrapeCmd.MarkFlagRequired("password")

	testLoginCmd.Flags().StringVar(&loginRequest.Username, "username", "", "Portal account username")
	testLoginCmd.Flags().StringVar(&loginRequest.Password, "password", "", "Portal account password")
	_ = testLoginCmd.MarkFlagRequired("username")
	_ = testLoginCmd.MarkFlagRequired("password")
}
