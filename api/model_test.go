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

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBuiltinDefaults(t *testing.T) {
	request := ScrapeRequest{Username: "jane", Password: "pw"}

	require.NoError(t, request.ApplyDefaults())

	assert.Equal(t, BuiltinDefaults.TimeRange, request.TimeRange)
	assert.Equal(t, BuiltinDefaults.SavedSearchName, request.SavedSearchName)
	assert.Equal(t, BuiltinDefaults.MaxPages, request.MaxPages)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	request := ScrapeRequest{
		Username: "jane",
		Password: "pw",
		ScrapeDefaults: ScrapeDefaults{
			TimeRange: "30d",
		},
	}

	require.NoError(t, request.ApplyDefaults())

	assert.Equal(t, "30d", request.TimeRange)
	assert.Equal(t, BuiltinDefaults.SavedSearchName, request.SavedSearchName)
}

func TestApplyDefaultsProfilePrecedence(t *testing.T) {
	request := ScrapeRequest{Username: "jane", Password: "pw"}
	profile := ScrapeDefaults{SavedSearchName: "Weekly digest", MaxPages: 5}

	require.NoError(t, request.ApplyDefaults(profile))

	// the profile wins over the builtin defaults, unset fields fall through
	assert.Equal(t, "Weekly digest", request.SavedSearchName)
	assert.Equal(t, 5, request.MaxPages)
	assert.Equal(t, BuiltinDefaults.TimeRange, request.TimeRange)
}

func TestFingerprintIgnoresPassword(t *testing.T) {
	first := ScrapeRequest{Username: "jane", Password: "pw"}
	second := ScrapeRequest{Username: "jane", Password: "changed"}
	require.NoError(t, first.ApplyDefaults())
	require.NoError(t, second.ApplyDefaults())

	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	third := ScrapeRequest{Username: "john", Password: "pw"}
	require.NoError(t, third.ApplyDefaults())
	assert.NotEqual(t, first.Fingerprint(), third.Fingerprint())
}
