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

package web

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingnotifier/scraper/api"
)

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  weekly:
    saved_search_name: New Listings - last week
    time_range: 7d
    max_pages: 30
  daily:
    saved_search_name: New Listings - today
    time_range: 1d
`), 0600))

	profiles, err := LoadProfiles(path)

	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, api.ScrapeDefaults{
		SavedSearchName: "New Listings - last week",
		TimeRange:       "7d",
		MaxPages:        30,
	}, profiles["weekly"])
	assert.Equal(t, 0, profiles["daily"].MaxPages)
}

func TestLoadProfilesEmptyPath(t *testing.T) {
	profiles, err := LoadProfiles("")

	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestLoadProfilesRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  weekly:
    saved_search: mistyped key
`), 0600))

	_, err := LoadProfiles(path)

	assert.Error(t, err)
}
