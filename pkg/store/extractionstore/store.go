package extractionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrKeyEmpty = errors.New("key is empty")
	ErrNotFound = errors.New("record not found")
)

// Record is the persisted per-block extraction summary.
type Record struct {
	Slot       uint64                    `json:"slot"`
	Blockhash  string                    `json:"blockhash"`
	BlockTime  int64                     `json:"block_time,omitempty"`
	Operations map[string]int64          `json:"operations"`
	Handlers   map[string]map[string]any `json:"handlers"`
}

// Store persists extraction summaries keyed by slot in Badger.
type Store struct {
	db     *badger.DB
	prefix string
}

func New(path string, prefix string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		prefix: prefix,
	}, nil
}

func (s *Store) slotKey(slot uint64) string {
	// Zero-padded so lexicographic iteration follows slot order.
	k := fmt.Sprintf("block/%020d", slot)
	if s.prefix != "" {
		return s.prefix + "/" + k
	}
	return k
}

func (s *Store) Put(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(s.slotKey(rec.Slot)), data)
	})
}

func (s *Store) Get(slot uint64) (*Record, error) {
	var valCopy []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.slotKey(slot)))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		valCopy = val
		return nil
	})
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(valCopy, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Range returns the stored records for slots in [from, to], ascending.
func (s *Store) Range(from, to uint64) ([]*Record, error) {
	if to < from {
		return nil, fmt.Errorf("invalid range %d..%d", from, to)
	}

	searchPrefix := "block/"
	if s.prefix != "" {
		searchPrefix = s.prefix + "/" + searchPrefix
	}

	result := make([]*Record, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := []byte(fmt.Sprintf("%s%020d", searchPrefix, from))
		p := []byte(searchPrefix)
		for it.Seek(seek); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			slot, err := strconv.ParseUint(key[len(searchPrefix):], 10, 64)
			if err != nil {
				continue
			}
			if slot > to {
				break
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			result = append(result, &rec)
		}
		return nil
	})
	return result, err
}

func (s *Store) Delete(slot uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(s.slotKey(slot)))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
