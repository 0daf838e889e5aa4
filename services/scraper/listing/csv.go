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

// Package listing turns the portal's CSV exports into listing records.
package listing

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/listingnotifier/scraper/api"
)

var log = logrus.WithField("component", "listing")

type table struct {
	header []string
	rows   [][]string
}

// readTable reads one exported CSV file. The portal's exports are usually
// UTF-8 but older report templates emit Latin-1, and some rows carry stray
// quotes or a wrong field count.
func readTable(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "unable to read export file %q", path)
	}
	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.Annotatef(err, "unable to decode export file %q", path)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return &table{}, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "unable to parse export file %q", path)
	}

	result := &table{header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// skip the bad row
			log.WithFields(logrus.Fields{
				"path":  path,
				"error": err,
			}).Debug("skipping malformed export row")
			continue
		}
		if len(row) > len(header) {
			log.WithField("path", path).Debug("skipping export row wider than the header")
			continue
		}
		result.rows = append(result.rows, row)
	}
	return result, nil
}

// MergeFiles merges the per-page exports into a single record set. Columns
// keep their first-seen order across pages, missing cells are empty strings.
func MergeFiles(paths []string) ([]api.Listing, error) {
	var columns []string
	seen := map[string]bool{}
	var listings []api.Listing

	for _, path := range paths {
		page, err := readTable(path)
		if err != nil {
			return nil, err
		}
		for _, column := range page.header {
			if !seen[column] {
				seen[column] = true
				columns = append(columns, column)
			}
		}
		for _, row := range page.rows {
			record := api.Listing{}
			for _, column := range columns {
				record[column] = ""
			}
			for idx, value := range row {
				record[page.header[idx]] = value
			}
			listings = append(listings, record)
		}
	}

	// earlier pages may predate columns introduced later, backfill them
	for _, record := range listings {
		for _, column := range columns {
			if _, ok := record[column]; !ok {
				record[column] = ""
			}
		}
	}

	return listings, nil
}
