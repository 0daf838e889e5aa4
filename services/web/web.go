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

// Package web assembles and runs the scraping web service.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/listingnotifier/scraper/services/scraper"
	"github.com/listingnotifier/scraper/services/web/httpserver"
	"github.com/listingnotifier/scraper/services/web/runs"
	"github.com/listingnotifier/scraper/services/web/runs/backend"
	boltBackend "github.com/listingnotifier/scraper/services/web/runs/backend/bolt"
	memoryBackend "github.com/listingnotifier/scraper/services/web/runs/backend/memory"
)

var log = logrus.WithField("component", "web")

type Options struct {
	scraper.Options
	Port uint
	// Secret guards the API, empty disables authentication (dev mode).
	Secret string
	// DBFile is the bbolt run store, empty keeps runs in memory.
	DBFile            string
	ProfilesFile      string
	MaxConcurrentRuns uint
}

var DefaultOptions = Options{
	Options:           scraper.DefaultOptions,
	Port:              8000,
	Secret:            "",
	DBFile:            "",
	ProfilesFile:      "",
	MaxConcurrentRuns: 2,
}

func Run(ctx context.Context, options Options) error {
	profiles, err := LoadProfiles(options.ProfilesFile)
	if err != nil {
		return err
	}

	var runsBackend backend.Backend
	if options.DBFile != "" {
		log.WithField("path", options.DBFile).Info("using a bbolt run store")
		runsBackend, err = boltBackend.CreateBoltBackend(options.DBFile)
	} else {
		log.Info("using an in-memory run store")
		runsBackend, err = memoryBackend.CreateMemoryBackend()
	}
	if err != nil {
		return err
	}

	engine, err := scraper.New(options.Options)
	if err != nil {
		return err
	}

	runManager := runs.NewManager(ctx, runsBackend, engine.Scrape, int(options.MaxConcurrentRuns))

	httpServer, err := httpserver.New(
		options.Port,
		engine,
		runManager,
		profiles,
		options.Secret,
	)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	// Start the http server
	group.Go(func() error {
		log.WithField("port", options.Port).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info("Gracefully stopping")

		log.Debug("Waiting for the pending runs")
		runManager.Wait()

		log.Debug("Stopping the http server")
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(stopCtx); err != nil {
			log.WithField("error", err).Warning("Error while stopping")
		}

		runsBackend.Destroy()
		return ctx.Err()
	})

	return group.Wait()
}
