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

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"

	"github.com/listingnotifier/scraper/api"
)

// LoadProfiles reads the named scrape profiles file, e.g.
//
//	profiles:
//	  weekly:
//	    saved_search_name: New Listings - last week
//	    time_range: 7d
//	    max_pages: 30
//
// An empty path yields no profiles.
func LoadProfiles(path string) (map[string]api.ScrapeDefaults, error) {
	if path == "" {
		return map[string]api.ScrapeDefaults{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "unable to read the profiles file %q", path)
	}

	parsed := struct {
		Profiles map[string]api.ScrapeDefaults `yaml:"profiles"`
	}{}
	if err := yaml.UnmarshalStrict(data, &parsed); err != nil {
		return nil, errors.Annotatef(err, "unable to parse the profiles file %q", path)
	}
	if parsed.Profiles == nil {
		parsed.Profiles = map[string]api.ScrapeDefaults{}
	}
	return parsed.Profiles, nil
}
