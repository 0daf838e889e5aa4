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

// Package memory implements an in-process run store, used when the service
// runs without a database file and by the tests.
package memory

import (
	"context"
	"sync"

	"github.com/listingnotifier/scraper/services/web/runs/backend"
)

type memoryBackend struct {
	mutex   sync.Mutex
	runs    map[string]*backend.RunRecord
	ordered []string // run ids in creation order
	nextIdx uint64
}

func CreateMemoryBackend() (backend.Backend, error) {
	return &memoryBackend{
		runs:    make(map[string]*backend.RunRecord),
		nextIdx: 1,
	}, nil
}

func (b *memoryBackend) Destroy() {}

func clone(record *backend.RunRecord) *backend.RunRecord {
	cloned := *record
	return &cloned
}

func (b *memoryBackend) CreateRun(_ context.Context, record *backend.RunRecord) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.runs[record.RunID]; ok {
		return backend.NewUnexpectedError("run %q already exists", record.RunID)
	}
	record.RunIdx = b.nextIdx
	b.nextIdx++
	b.runs[record.RunID] = clone(record)
	b.ordered = append(b.ordered, record.RunID)
	return nil
}

func (b *memoryBackend) UpdateRun(_ context.Context, record *backend.RunRecord) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	stored, ok := b.runs[record.RunID]
	if !ok {
		return &backend.UnknownRunError{RunID: record.RunID}
	}
	record.RunIdx = stored.RunIdx
	b.runs[record.RunID] = clone(record)
	return nil
}

func (b *memoryBackend) RetrieveRuns(
	_ context.Context,
	filter backend.RunFilter,
	fromRunIdx int,
	count int,
) (backend.RetrieveRunsResult, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	runs := []*backend.RunRecord{}
	nextRunIdx := int(b.nextIdx - 1)
	for _, runID := range b.ordered {
		record, ok := b.runs[runID]
		if !ok {
			// deleted
			continue
		}
		// RunIdx starts at 1 like the bolt sequence
		if int(record.RunIdx) <= fromRunIdx {
			continue
		}
		if count > 0 && len(runs) >= count {
			nextRunIdx = int(record.RunIdx) - 1
			break
		}
		if filter.Selects(record) {
			runs = append(runs, clone(record))
		}
	}
	return backend.RetrieveRunsResult{Runs: runs, NextRunIdx: nextRunIdx}, nil
}

func (b *memoryBackend) GetRun(_ context.Context, runID string) (*backend.RunRecord, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	record, ok := b.runs[runID]
	if !ok {
		return nil, &backend.UnknownRunError{RunID: runID}
	}
	return clone(record), nil
}

func (b *memoryBackend) DeleteRun(_ context.Context, runID string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.runs[runID]; !ok {
		return &backend.UnknownRunError{RunID: runID}
	}
	delete(b.runs, runID)
	return nil
}
