// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

// Archive is the cold tier: records truncated out of the hot window
// land here so lifetime history survives the 500-record cap.
//
// Keys are timestamp-ordered (big-endian unix seconds plus a sequence
// suffix), so time-range scans are a prefix iteration.
type Archive struct {
	db  *badger.DB
	seq atomic.Uint64
}

// OpenArchive opens (or creates) a badger archive at dir.
func OpenArchive(dir string) (*Archive, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// archiveKey builds a 16-byte ordered key: 8 bytes of timestamp, 8 of
// sequence. The sequence disambiguates records within a second.
func (a *Archive) archiveKey(ts int64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(ts))
	binary.BigEndian.PutUint64(key[8:], a.seq.Add(1))
	return key
}

// Put archives a batch of records in one transaction.
func (a *Archive) Put(recs []intent.Record) error {
	return a.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal archived record: %w", err)
			}
			if err := txn.Set(a.archiveKey(rec.Timestamp), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Since returns archived records with timestamps at or after the
// cutoff, oldest first, capped at limit (0 means no cap).
func (a *Archive) Since(cutoff time.Time, limit int) ([]intent.Record, error) {
	start := make([]byte, 16)
	binary.BigEndian.PutUint64(start[:8], uint64(cutoff.Unix()))

	var out []intent.Record
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(start); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec intent.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					// Skip undecodable entries; the archive is advisory.
					return nil
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	return out, nil
}

// Count returns the number of archived records.
func (a *Archive) Count() (int, error) {
	n := 0
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count archive: %w", err)
	}
	return n, nil
}

// Close flushes and closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
