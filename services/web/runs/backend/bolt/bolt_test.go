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

package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/listingnotifier/scraper/services/web/runs/backend"
	"github.com/listingnotifier/scraper/services/web/runs/backend/test"
)

func TestSuiteBoltBackend(t *testing.T) {
	test.RunSuite(t, func() backend.Backend {
		b, err := CreateBoltBackend(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		return b
	})
}

func TestRunsSurviveReopen(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "runs.db")

	b, err := CreateBoltBackend(filePath)
	require.NoError(t, err)
	record := &backend.RunRecord{RunID: "run-001"}
	require.NoError(t, b.CreateRun(context.Background(), record))
	b.Destroy()

	b, err = CreateBoltBackend(filePath)
	require.NoError(t, err)
	defer b.Destroy()
	retrieved, err := b.GetRun(context.Background(), "run-001")
	require.NoError(t, err)
	require.Equal(t, uint64(1), retrieved.RunIdx)
}
