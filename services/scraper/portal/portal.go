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

// Package portal drives the Property Control Center web UI: login, power
// search, saved searches and the per-page CSV export.
package portal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/listingnotifier/scraper/services/scraper/browser"
)

var log = logrus.WithField("component", "portal")

const DefaultBaseURL = "https://www.propertycontrolcenter.com"

// The portal is an ExtJS application, most of it is only addressable through
// generated element ids and link texts.
const (
	usernameSel = `input[name="username"]`
	passwordSel = `input[name="password"]`
	loginSel    = `input[type='submit'][value='Login'], input.button.submit`

	searchMenuSel      = `//li[@class='toproot']/a[text()='Search']`
	powerSearchLinkSel = `//a[@href='/users/?action=powersearch'][text()='Power Search']`
	reportFilterSel    = `#reportFilter`

	announcementPanelSel = `#panel-1012-bodyWrap`
	announcementCloseSel = `#tool-1013`

	loadSavedSearchSel = `//a[contains(text(), 'Load a Saved Search')]`
	savedSearchesSel   = `#savedPowerSearches-body`
	resultsTableSel    = `table.dataTable`

	exportLinkSel     = `//a[contains(text(), 'Export Search Results')]`
	exportCSVSel      = `//div[@id='exportChooser-body']//a[contains(text(), 'CSV (Comma Separated Value) File')]`
	paginationLinkFmt = `//ul[contains(@class, 'pagination')]/li[a/@data-pagenum='%d']/a`
)

const (
	waitTimeout     = 20 * time.Second
	exportTimeout   = 30 * time.Second
	downloadTimeout = 90 * time.Second
	popupTimeout    = 5 * time.Second
	settleDelay     = 2 * time.Second
	pageLoadDelay   = 5 * time.Second
)

type Portal struct {
	session *browser.Session
	baseURL string
}

func New(session *browser.Session, baseURL string) *Portal {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Portal{
		session: session,
		baseURL: baseURL,
	}
}

// Login signs into the portal and fails when the login form survives the
// attempt (wrong credentials leave the form in place).
func (p *Portal) Login(username string, password string) error {
	log.WithField("username", username).Debug("logging into the portal")

	err := p.session.Run(waitTimeout+pageLoadDelay,
		chromedp.Navigate(p.baseURL+"/users/"),
		chromedp.WaitVisible(usernameSel, chromedp.ByQuery),
	)
	if err != nil {
		return errors.Annotate(err, "login page did not load")
	}

	err = p.session.Run(waitTimeout,
		chromedp.SendKeys(usernameSel, username, chromedp.ByQuery),
		chromedp.SendKeys(passwordSel, password, chromedp.ByQuery),
		chromedp.Click(loginSel, chromedp.ByQuery),
	)
	if err != nil {
		return errors.Annotate(err, "unable to submit the login form")
	}

	err = p.session.Run(waitTimeout+pageLoadDelay,
		chromedp.WaitVisible(searchMenuSel, chromedp.BySearch),
	)
	if err != nil {
		return errors.Annotate(err, "login failed")
	}

	var loginForms []*cdp.Node
	err = p.session.Run(waitTimeout,
		chromedp.Nodes(usernameSel, &loginForms, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return errors.Annotate(err, "unable to verify the login")
	}
	if len(loginForms) > 0 {
		return errors.New("login form still present after login attempt")
	}

	return nil
}

// OpenPowerSearch navigates from the top menu to the power search page.
func (p *Portal) OpenPowerSearch() error {
	err := p.session.Run(waitTimeout,
		chromedp.Click(searchMenuSel, chromedp.BySearch),
		chromedp.Sleep(settleDelay/2),
		chromedp.Click(powerSearchLinkSel, chromedp.BySearch),
	)
	if err != nil {
		return errors.Annotate(err, "unable to open the power search page")
	}

	err = p.session.Run(waitTimeout+pageLoadDelay,
		chromedp.WaitVisible(reportFilterSel, chromedp.ByQuery),
	)
	return errors.Annotate(err, "power search page did not load")
}

// LoadSavedSearch runs the saved search named name and waits for the results
// table.
func (p *Portal) LoadSavedSearch(name string) error {
	p.dismissAnnouncement()

	err := p.session.Run(waitTimeout,
		chromedp.Click(loadSavedSearchSel, chromedp.BySearch),
		chromedp.WaitVisible(savedSearchesSel, chromedp.ByQuery),
	)
	if err != nil {
		return errors.Annotate(err, "unable to open the saved searches panel")
	}

	runLinkSel := fmt.Sprintf(
		`//td[contains(@class, 'description-td') and contains(text(), '%s')]/ancestor::tr//td[3]/a[contains(text(), 'Run')]`,
		name,
	)
	err = p.session.Run(waitTimeout,
		chromedp.Click(runLinkSel, chromedp.BySearch),
	)
	if err != nil {
		return errors.Annotatef(err, "saved search [%s] not found", name)
	}

	err = p.session.Run(waitTimeout+pageLoadDelay,
		chromedp.WaitVisible(resultsTableSel, chromedp.ByQuery),
	)
	return errors.Annotatef(err, "saved search [%s] returned no results table", name)
}

// dismissAnnouncement closes the announcement popup the portal sometimes
// shows after navigation. Best effort, its absence is the common case.
func (p *Portal) dismissAnnouncement() {
	err := p.session.Run(popupTimeout,
		chromedp.WaitVisible(announcementPanelSel, chromedp.ByQuery),
		chromedp.Click(announcementCloseSel, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		log.WithField("error", err).Trace("no announcement popup to dismiss")
	}
}

// ExportResultsPage triggers the CSV export of the current results page,
// waits for the browser download and renames it to page_<page>.csv.
func (p *Portal) ExportResultsPage(page int) (string, error) {
	err := p.session.Run(exportTimeout,
		chromedp.Click(exportLinkSel, chromedp.BySearch),
		chromedp.Sleep(settleDelay),
		chromedp.Click(exportCSVSel, chromedp.BySearch),
	)
	if err != nil {
		return "", errors.Annotatef(err, "unable to trigger the export of page %d", page)
	}

	downloadedPath, err := p.session.WaitDownload(downloadTimeout)
	if err != nil {
		return "", errors.Annotatef(err, "export of page %d did not complete", page)
	}

	exportPath := filepath.Join(p.session.DownloadDir(), fmt.Sprintf("page_%d.csv", page))
	if err := os.Rename(downloadedPath, exportPath); err != nil {
		return "", errors.Annotatef(err, "unable to move the export of page %d", page)
	}

	log.WithFields(logrus.Fields{
		"page": page,
		"path": exportPath,
	}).Debug("page exported")

	return exportPath, nil
}

// NextPage clicks the pagination link of the given page number. It returns
// false when there is no such page, which ends the pagination.
func (p *Portal) NextPage(page int) (bool, error) {
	err := p.session.Run(waitTimeout,
		chromedp.Click(fmt.Sprintf(paginationLinkFmt, page), chromedp.BySearch),
	)
	if err != nil {
		// The portal renders no link past the last page.
		return false, nil
	}

	err = p.session.Run(waitTimeout+pageLoadDelay,
		chromedp.WaitVisible(resultsTableSel, chromedp.ByQuery),
	)
	if err != nil {
		return false, errors.Annotatef(err, "page %d did not load", page)
	}
	return true, nil
}

// ExportAllPages walks the result pages up to maxPages and exports each one.
// An export error past the first page ends the walk with the pages collected
// so far, matching the portal's flaky export widget.
func (p *Portal) ExportAllPages(maxPages int) ([]string, error) {
	var files []string
	for page := 1; page <= maxPages; page++ {
		exportPath, err := p.ExportResultsPage(page)
		if err != nil {
			if len(files) > 0 {
				log.WithFields(logrus.Fields{
					"page":  page,
					"error": err,
				}).Warn("stopping pagination on export error")
				break
			}
			return nil, err
		}
		files = append(files, exportPath)

		if page == maxPages {
			break
		}
		more, err := p.NextPage(page + 1)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return files, nil
}
