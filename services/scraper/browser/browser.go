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

// Package browser owns the headless Chrome process behind a scrape. It talks
// to the browser over the DevTools protocol, no intermediate driver binary is
// involved so there is no browser/driver version matching to take care of.
package browser

import (
	"context"
	"os"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "browser")

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

type Options struct {
	// ExecPath overrides the Chrome binary lookup on $PATH.
	ExecPath  string
	Headless  bool
	UserAgent string
}

var DefaultOptions = Options{
	ExecPath:  "",
	Headless:  true,
	UserAgent: defaultUserAgent,
}

// Session is a single browser instance with a fresh profile and a private
// download directory. It is not safe for concurrent use, each scrape gets its
// own session.
type Session struct {
	ctx         context.Context
	cancels     []context.CancelFunc
	profileDir  string
	downloadDir string
	downloads   chan string
}

// New starts a browser. The session inherits cancellation from ctx.
func New(ctx context.Context, options Options) (*Session, error) {
	profileDir, err := os.MkdirTemp("", "scraper-profile-")
	if err != nil {
		return nil, errors.Annotate(err, "unable to create the browser profile directory")
	}
	downloadDir, err := os.MkdirTemp("", "scraper-exports-")
	if err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, errors.Annotate(err, "unable to create the browser download directory")
	}

	allocatorOptions := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(options.UserAgent),
		chromedp.UserDataDir(profileDir),
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if options.Headless {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("headless", "new"))
	}
	if options.ExecPath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(options.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	session := &Session{
		ctx:         taskCtx,
		cancels:     []context.CancelFunc{taskCancel, allocCancel},
		profileDir:  profileDir,
		downloadDir: downloadDir,
		downloads:   make(chan string, 16),
	}

	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if progress, ok := ev.(*cdpbrowser.EventDownloadProgress); ok {
			if progress.State == cdpbrowser.DownloadProgressStateCompleted {
				select {
				case session.downloads <- progress.GUID:
				default:
					log.WithField("guid", progress.GUID).Warn("dropping unconsumed download")
				}
			}
		}
	})

	err = chromedp.Run(taskCtx,
		network.Enable(),
		network.SetCacheDisabled(true),
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		session.Close()
		return nil, errors.Annotate(err, "unable to start the browser")
	}

	log.WithFields(logrus.Fields{
		"profile_dir":  profileDir,
		"download_dir": downloadDir,
	}).Debug("browser session started")

	return session, nil
}

// Run executes the actions against the session's browser tab, bounded by the
// given timeout.
func (s *Session) Run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// WaitDownload blocks until the browser reports a completed download and
// returns its path inside the session download directory.
func (s *Session) WaitDownload(timeout time.Duration) (string, error) {
	select {
	case guid := <-s.downloads:
		return filepath.Join(s.downloadDir, guid), nil
	case <-time.After(timeout):
		return "", errors.Errorf("download timed out after %s", timeout)
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

// DownloadDir is the directory browser downloads land in. It is removed when
// the session is closed.
func (s *Session) DownloadDir() string {
	return s.downloadDir
}

func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	_ = os.RemoveAll(s.profileDir)
	_ = os.RemoveAll(s.downloadDir)
}
