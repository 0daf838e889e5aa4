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

package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/listingnotifier/scraper/cmd/services/utils"
	"github.com/listingnotifier/scraper/services/web"
	"github.com/listingnotifier/scraper/version"
)

// webViper represents the configuration of the web command
var webViper = viper.New()

const webPortKey = "port"
const webPortEnv = "SCRAPER_PORT"
const webSecretKey = "secret"
const webSecretEnv = "SCRAPER_SECRET"
const webDBFileKey = "db"
const webDBFileEnv = "SCRAPER_DB"
const webProfilesFileKey = "profiles"
const webProfilesFileEnv = "SCRAPER_PROFILES"
const webPortalURLKey = "portal_url"
const webPortalURLEnv = "SCRAPER_PORTAL_URL"
const webChromePathKey = "chrome_path"
const webChromePathEnv = "SCRAPER_CHROME_PATH"
const webHeadlessKey = "headless"
const webHeadlessEnv = "SCRAPER_HEADLESS"
const webMaxConcurrentRunsKey = "max_concurrent_runs"
const webMaxConcurrentRunsEnv = "SCRAPER_MAX_CONCURRENT_RUNS"
const webCacheTTLKey = "cache_ttl"
const webCacheTTLEnv = "SCRAPER_CACHE_TTL"

// webCmd represents the web service
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the scraping web service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		err := configureLog(servicesViper)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"version": version.Version,
			"hash":    version.Hash,
		}).Info("starting the scraping web service")

		options := web.DefaultOptions
		options.Port = webViper.GetUint(webPortKey)
		options.Secret = webViper.GetString(webSecretKey)
		options.DBFile = webViper.GetString(webDBFileKey)
		options.ProfilesFile = webViper.GetString(webProfilesFileKey)
		options.PortalURL = webViper.GetString(webPortalURLKey)
		options.ExecPath = webViper.GetString(webChromePathKey)
		options.Headless = webViper.GetBool(webHeadlessKey)
		options.MaxConcurrentRuns = webViper.GetUint(webMaxConcurrentRunsKey)
		options.CacheTTL = webViper.GetDuration(webCacheTTLKey)

		ctx := utils.ContextWithUserTermination(context.Background())

		err = web.Run(ctx, options)
		if err != nil {
			if err == context.Canceled {
				log.Info("interrupted by user")
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	webViper.SetDefault(webPortKey, web.DefaultOptions.Port)
	_ = webViper.BindEnv(webPortKey, webPortEnv)
	webCmd.Flags().Uint(
		webPortKey,
		webViper.GetUint(webPortKey),
		"The http port to listen on",
	)

	webViper.SetDefault(webSecretKey, web.DefaultOptions.Secret)
	_ = webViper.BindEnv(webSecretKey, webSecretEnv)
	webCmd.Flags().String(
		webSecretKey,
		webViper.GetString(webSecretKey),
		"Secret guarding the API, leave empty to disable authentication",
	)

	webViper.SetDefault(webDBFileKey, web.DefaultOptions.DBFile)
	_ = webViper.BindEnv(webDBFileKey, webDBFileEnv)
	webCmd.Flags().String(
		webDBFileKey,
		webViper.GetString(webDBFileKey),
		"File used to store runs, leave empty to keep runs in memory",
	)

	webViper.SetDefault(webProfilesFileKey, web.DefaultOptions.ProfilesFile)
	_ = webViper.BindEnv(webProfilesFileKey, webProfilesFileEnv)
	webCmd.Flags().String(
		webProfilesFileKey,
		webViper.GetString(webProfilesFileKey),
		"YAML file defining named scrape profiles",
	)

	webViper.SetDefault(webPortalURLKey, web.DefaultOptions.PortalURL)
	_ = webViper.BindEnv(webPortalURLKey, webPortalURLEnv)
	webCmd.Flags().String(
		webPortalURLKey,
		webViper.GetString(webPortalURLKey),
		"Base url of the listing portal",
	)

	webViper.SetDefault(webChromePathKey, web.DefaultOptions.ExecPath)
	_ = webViper.BindEnv(webChromePathKey, webChromePathEnv)
	webCmd.Flags().String(
		webChromePathKey,
		webViper.GetString(webChromePathKey),
		"Path to the Chrome binary, leave empty to look it up on $PATH",
	)

	webViper.SetDefault(webHeadlessKey, web.DefaultOptions.Headless)
	_ = webViper.BindEnv(webHeadlessKey, webHeadlessEnv)
	webCmd.Flags().Bool(
		webHeadlessKey,
		webViper.GetBool(webHeadlessKey),
		"Run the browser headless",
	)

	webViper.SetDefault(webMaxConcurrentRunsKey, web.DefaultOptions.MaxConcurrentRuns)
	_ = webViper.BindEnv(webMaxConcurrentRunsKey, webMaxConcurrentRunsEnv)
	webCmd.Flags().Uint(
		webMaxConcurrentRunsKey,
		webViper.GetUint(webMaxConcurrentRunsKey),
		"Maximum number of scrape runs executing at the same time",
	)

	webViper.SetDefault(webCacheTTLKey, web.DefaultOptions.CacheTTL)
	_ = webViper.BindEnv(webCacheTTLKey, webCacheTTLEnv)
	webCmd.Flags().Duration(
		webCacheTTLKey,
		webViper.GetDuration(webCacheTTLKey),
		"How long identical scrape results are served from the cache, 0 disables it",
	)

	// Don't sort alphabetically, keep insertion order
	webCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = webViper.BindPFlags(webCmd.Flags())
}
