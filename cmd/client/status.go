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

package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

type healthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the web service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		var health healthStatus
		resp, err := apiClient().R().
			SetResult(&health).
			Get("/health")
		if err := checkResponse(resp, err); err != nil {
			return err
		}

		fmt.Printf("%s %s is %s\n", health.Service, health.Version, health.Status)
		return nil
	},
}
