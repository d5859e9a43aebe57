// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const sequenceKey = "audit/_seq"

// keyBandwidth is how many sequence numbers Store reserves from Badger
// at a time before it needs to persist a new high-water mark.
const keyBandwidth = 100

// Store is a Badger-backed append-only log: entries are written once
// under a monotonically increasing, zero-padded key so Badger's natural
// key ordering is also chronological order.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (creating if necessary) a Badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger audit store at %s: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), keyBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("acquire audit sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the underlying database.
func (s *Store) Close() error {
	seqErr := s.seq.Release()
	dbErr := s.db.Close()
	if seqErr != nil {
		return seqErr
	}
	return dbErr
}

// Record appends e to the log.
func (s *Store) Record(ctx context.Context, e Entry) error {
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("reserve audit sequence number: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	key := entryKey(n)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// List returns every entry matching filter, in chronological order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("unmarshal audit entry: %w", err)
			}
			if filter.matches(e) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// Count returns the number of entries matching filter.
func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	entries, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

const entryKeyPrefix = "audit/entry/"

func entryKey(n uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryKeyPrefix, n))
}
