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

// Package bolt implements a run store on a bbolt file database.
package bolt

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/listingnotifier/scraper/services/web/runs/backend"
)

var log = logrus.WithField("component", "runs_bolt_backend")

type boltBackend struct {
	db       *bolt.DB
	filePath string
}

// Bucket structure is
//	runs				> {run_id}	>	{backend.RunRecord (gob)}
//	run_indices	>	run_idx		>	{run_idx}	>	{run_id}

var runsBucketName = []byte("runs")
var indicesBucketName = []byte("run_indices")
var runsIdxBucketName = []byte("run_idx")

func getRunsBucket(tx *bolt.Tx) *bolt.Bucket {
	runsBucket := tx.Bucket(runsBucketName)
	if runsBucket == nil {
		log.Fatal("runs bucket doesn't exist")
	}
	return runsBucket
}

func getRunsIdxBucket(tx *bolt.Tx) *bolt.Bucket {
	indicesBucket := tx.Bucket(indicesBucketName)
	if indicesBucket == nil {
		log.Fatal("indices bucket doesn't exist")
	}
	runsIdxBucket := indicesBucket.Bucket(runsIdxBucketName)
	if runsIdxBucket == nil {
		log.Fatal("runs idx bucket doesn't exist")
	}
	return runsIdxBucket
}

func serializeNumID(id uint64) []byte {
	// Format using a hex representation of a fixed length of 16 characters padded with 0
	return []byte(fmt.Sprintf("%016x", id))
}

func deserializeNumIDAsInt(value []byte) (int, error) {
	number, err := strconv.ParseInt(string(value), 16, 32)
	if err != nil {
		return 0, backend.NewUnexpectedError("unable to deserialize number id as an int (%w)", err)
	}
	return int(number), nil
}

func serializeRunRecord(record *backend.RunRecord) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(record)
	if err != nil {
		return nil, backend.NewUnexpectedError("unable to serialize run record (%w)", err)
	}
	return buf.Bytes(), nil
}

func deserializeRunRecord(v []byte) (*backend.RunRecord, error) {
	record := &backend.RunRecord{}
	err := gob.NewDecoder(bytes.NewReader(v)).Decode(record)
	if err != nil {
		return nil, backend.NewUnexpectedError("unable to deserialize run record (%w)", err)
	}
	return record, nil
}

func CreateBoltBackend(filePath string) (backend.Backend, error) {
	db, err := bolt.Open(filePath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	// Create the root buckets
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucketName)
		if err != nil {
			return backend.NewUnexpectedError("unable to create the runs bucket (%w)", err)
		}
		indicesBucket, err := tx.CreateBucketIfNotExists(indicesBucketName)
		if err != nil {
			return backend.NewUnexpectedError("unable to create the run indices bucket (%w)", err)
		}
		_, err = indicesBucket.CreateBucketIfNotExists(runsIdxBucketName)
		if err != nil {
			return backend.NewUnexpectedError("unable to create the run idx bucket (%w)", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &boltBackend{
		db:       db,
		filePath: filePath,
	}, nil
}

func (b *boltBackend) Destroy() {
	b.db.Close()
	b.db = nil
}

func (b *boltBackend) CreateRun(_ context.Context, record *backend.RunRecord) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		runsBucket := getRunsBucket(tx)
		runsIdxBucket := getRunsIdxBucket(tx)

		runKey := []byte(record.RunID)
		if runsBucket.Get(runKey) != nil {
			return backend.NewUnexpectedError("run %q already exists", record.RunID)
		}

		// Because we use `NextSequence` here the runIdx starts at 1
		runIdx, _ := runsIdxBucket.NextSequence()
		record.RunIdx = runIdx
		err := runsIdxBucket.Put(serializeNumID(runIdx), runKey)
		if err != nil {
			return backend.NewUnexpectedError("unable to add run %q insertion index (%w)", record.RunID, err)
		}

		recordV, err := serializeRunRecord(record)
		if err != nil {
			return err
		}
		err = runsBucket.Put(runKey, recordV)
		if err != nil {
			return backend.NewUnexpectedError("unable to add run %q (%w)", record.RunID, err)
		}
		return nil
	})
}

func (b *boltBackend) UpdateRun(_ context.Context, record *backend.RunRecord) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		runsBucket := getRunsBucket(tx)

		runKey := []byte(record.RunID)
		if runsBucket.Get(runKey) == nil {
			return &backend.UnknownRunError{RunID: record.RunID}
		}

		recordV, err := serializeRunRecord(record)
		if err != nil {
			return err
		}
		err = runsBucket.Put(runKey, recordV)
		if err != nil {
			return backend.NewUnexpectedError("unable to update run %q (%w)", record.RunID, err)
		}
		return nil
	})
}

func (b *boltBackend) RetrieveRuns(
	_ context.Context,
	filter backend.RunFilter,
	fromRunIdx int,
	count int,
) (backend.RetrieveRunsResult, error) {
	runs := []*backend.RunRecord{}
	nextRunIdx := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		runsBucket := getRunsBucket(tx)
		runsIdxBucket := getRunsIdxBucket(tx)

		var runIdxKey []byte
		var runIDKey []byte
		c := runsIdxBucket.Cursor()
		if fromRunIdx <= 0 {
			runIdxKey, runIDKey = c.First()
		} else {
			// Adding +1 because of the stored runIdx offset
			runIdxKey, runIDKey = c.Seek(serializeNumID(uint64(fromRunIdx + 1)))
		}
		for ; runIdxKey != nil; runIdxKey, runIDKey = c.Next() {
			if count > 0 && len(runs) >= count {
				// We've retrieved enough runs
				break
			}
			recordV := runsBucket.Get(runIDKey)
			if recordV == nil {
				// The run was deleted, its index entry is left behind
				continue
			}
			record, err := deserializeRunRecord(recordV)
			if err != nil {
				return err
			}
			if filter.Selects(record) {
				runs = append(runs, record)
			}
		}

		if runIdxKey != nil {
			var err error
			nextRunIdx, err = deserializeNumIDAsInt(runIdxKey)
			if err != nil {
				return err
			}
			// Dealing with the internal index being offseted
			nextRunIdx--
		} else {
			nextRunIdx = int(runsIdxBucket.Sequence())
		}

		return nil
	})

	if err != nil {
		return backend.RetrieveRunsResult{}, backend.NewUnexpectedError("unable to retrieve requested runs (%w)", err)
	}

	return backend.RetrieveRunsResult{Runs: runs, NextRunIdx: nextRunIdx}, nil
}

func (b *boltBackend) GetRun(_ context.Context, runID string) (*backend.RunRecord, error) {
	var record *backend.RunRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		recordV := getRunsBucket(tx).Get([]byte(runID))
		if recordV == nil {
			return &backend.UnknownRunError{RunID: runID}
		}
		var err error
		record, err = deserializeRunRecord(recordV)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (b *boltBackend) DeleteRun(_ context.Context, runID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		runsBucket := getRunsBucket(tx)
		runKey := []byte(runID)
		if runsBucket.Get(runKey) == nil {
			return &backend.UnknownRunError{RunID: runID}
		}
		err := runsBucket.Delete(runKey)
		if err != nil {
			return backend.NewUnexpectedError("unable to delete run %q (%w)", runID, err)
		}
		return nil
	})
}
