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

// Package scraper orchestrates a scrape end to end: browser session, portal
// login, saved search, per-page CSV export and merge.
package scraper

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/listingnotifier/scraper/api"
	"github.com/listingnotifier/scraper/services/scraper/browser"
	"github.com/listingnotifier/scraper/services/scraper/listing"
	"github.com/listingnotifier/scraper/services/scraper/portal"
	"github.com/listingnotifier/scraper/utils/metrics"
)

var log = logrus.WithField("component", "scraper")

type Options struct {
	browser.Options
	PortalURL string
	// CacheTTL bounds how long a scrape result may be served to an identical
	// request without going back to the portal. Zero disables the cache.
	CacheTTL  time.Duration
	CacheSize int
}

var DefaultOptions = Options{
	Options:   browser.DefaultOptions,
	PortalURL: portal.DefaultBaseURL,
	CacheTTL:  0,
	CacheSize: 32,
}

type cachedResult struct {
	result *api.ScrapeResult
	at     time.Time
}

type Scraper struct {
	options Options
	cache   *lru.Cache
}

func New(options Options) (*Scraper, error) {
	scraper := &Scraper{options: options}
	if options.CacheTTL > 0 {
		cacheSize := options.CacheSize
		if cacheSize <= 0 {
			cacheSize = DefaultOptions.CacheSize
		}
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, err
		}
		scraper.cache = cache
	}
	return scraper, nil
}

// TestLogin checks the credentials against the portal without scraping
// anything.
func (s *Scraper) TestLogin(ctx context.Context, request api.LoginRequest) error {
	session, err := browser.New(ctx, s.options.Options)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := portal.New(session, s.options.PortalURL).Login(request.Username, request.Password); err != nil {
		metrics.LoginFailures.Inc()
		return err
	}
	return nil
}

// Scrape runs the request's saved search and returns the merged listings.
// The request is expected to have its defaults applied.
func (s *Scraper) Scrape(ctx context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error) {
	if result := s.cachedResult(&request); result != nil {
		metrics.CacheHits.Inc()
		return result, nil
	}

	log.WithFields(logrus.Fields{
		"username":     request.Username,
		"saved_search": request.SavedSearchName,
		"max_pages":    request.MaxPages,
	}).Info("starting a scrape")

	session, err := browser.New(ctx, s.options.Options)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	site := portal.New(session, s.options.PortalURL)

	if err := site.Login(request.Username, request.Password); err != nil {
		metrics.LoginFailures.Inc()
		return nil, err
	}
	if err := site.OpenPowerSearch(); err != nil {
		return nil, err
	}
	if err := site.LoadSavedSearch(request.SavedSearchName); err != nil {
		return nil, err
	}

	files, err := site.ExportAllPages(request.MaxPages)
	if err != nil {
		return nil, err
	}
	metrics.PagesExported.Add(float64(len(files)))

	listings, err := listing.MergeFiles(files)
	if err != nil {
		return nil, errors.Annotate(err, "unable to merge the exported pages")
	}

	result := &api.ScrapeResult{
		Listings:     listings,
		TotalCount:   len(listings),
		PagesScraped: len(files),
	}
	if result.Listings == nil {
		result.Listings = []api.Listing{}
	}

	log.WithFields(logrus.Fields{
		"username":      request.Username,
		"total_count":   result.TotalCount,
		"pages_scraped": result.PagesScraped,
	}).Info("scrape finished")

	s.storeResult(&request, result)
	return result, nil
}

func (s *Scraper) cachedResult(request *api.ScrapeRequest) *api.ScrapeResult {
	if s.cache == nil {
		return nil
	}
	value, ok := s.cache.Get(request.Fingerprint())
	if !ok {
		return nil
	}
	cached := value.(cachedResult)
	if time.Since(cached.at) > s.options.CacheTTL {
		s.cache.Remove(request.Fingerprint())
		return nil
	}
	return cached.result
}

func (s *Scraper) storeResult(request *api.ScrapeRequest, result *api.ScrapeResult) {
	if s.cache == nil {
		return
	}
	s.cache.Add(request.Fingerprint(), cachedResult{result: result, at: time.Now()})
}
