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

// Package client implements the command line client of the scraping web
// service.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// clientViper represents the configuration of the client commands
var clientViper = viper.New()

const clientEndpointKey = "endpoint"
const clientEndpointEnv = "SCRAPER_ENDPOINT"
const clientSecretKey = "secret"
const clientSecretEnv = "SCRAPER_SECRET"
const clientVerboseKey = "verbose"

// ClientCmd groups the commands talking to a running scraper web service
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interact with a running scraping web service",
}

func init() {
	clientViper.SetDefault(clientEndpointKey, "http://localhost:8000")
	_ = clientViper.BindEnv(clientEndpointKey, clientEndpointEnv)
	ClientCmd.PersistentFlags().String(
		clientEndpointKey,
		clientViper.GetString(clientEndpointKey),
		"Base url of the web service",
	)

	clientViper.SetDefault(clientSecretKey, "")
	_ = clientViper.BindEnv(clientSecretKey, clientSecretEnv)
	ClientCmd.PersistentFlags().String(
		clientSecretKey,
		clientViper.GetString(clientSecretKey),
		"API secret or access token",
	)

	clientViper.SetDefault(clientVerboseKey, false)
	ClientCmd.PersistentFlags().Bool(
		clientVerboseKey,
		clientViper.GetBool(clientVerboseKey),
		"Log the http exchanges",
	)

	// Bind "cobra" flags defined in the CLI with viper
	_ = clientViper.BindPFlags(ClientCmd.PersistentFlags())

	ClientCmd.AddCommand(statusCmd)
	ClientCmd.AddCommand(scrapeCmd)
	ClientCmd.AddCommand(testLoginCmd)
	ClientCmd.AddCommand(runsCmd)
}

// apiClient builds a resty client targeting the configured web service.
func apiClient() *resty.Client {
	client := resty.New()
	client.SetBaseURL(clientViper.GetString(clientEndpointKey))
	client.SetDebug(clientViper.GetBool(clientVerboseKey))
	if secret := clientViper.GetString(clientSecretKey); secret != "" {
		client.SetAuthToken(secret)
	}
	return client
}

type apiError struct {
	Message string `json:"message"`
}

// checkResponse turns a non-2xx response into an error carrying the service's
// message when it sent one.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var serviceErr apiError
	if json.Unmarshal(resp.Body(), &serviceErr) == nil && serviceErr.Message != "" {
		return fmt.Errorf("%s (http status %d)", serviceErr.Message, resp.StatusCode())
	}
	return fmt.Errorf("unexpected http status %d: %s", resp.StatusCode(), resp.Body())
}

func printJSON(value interface{}) error {
	output, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
