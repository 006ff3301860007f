// Package store is a small badger-backed key-value store for calibration
// profiles and user preferences. Keys are ':'-joined path segments.
package store

import (
	"context"
	"errors"
	"iter"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"blinkos/log"
)

var ErrNotFound = errors.New("store: not found")

type Key []string

func (k Key) String() string {
	return strings.Join(k, ":")
}

func (k Key) encode() []byte {
	return []byte(k.String())
}

type Entry struct {
	Key   Key
	Value []byte
}

type Options struct {
	// Dir holds the badger data files. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in memory. Used by tests.
	InMemory bool
}

type Store struct {
	db *badger.DB
}

func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key Key) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.encode())
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *Store) Set(_ context.Context, key Key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.encode(), value)
	})
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, key Key) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key.encode())
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// List yields every entry under prefix in key order.
func (s *Store) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := append(prefix.encode(), ':')
	return func(yield func(Entry, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = p
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					if !yield(Entry{}, err) {
						return nil
					}
					continue
				}
				k := Key(strings.Split(string(item.KeyCopy(nil)), ":"))
				if !yield(Entry{Key: k, Value: val}, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger warnings into the diagnostics log and drops the
// chatty levels.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any)   { log.Errorf("badger: "+f, v...) }
func (badgerLogger) Warningf(f string, v ...any) { log.Warnf("badger: "+f, v...) }
func (badgerLogger) Infof(string, ...any)        {}
func (badgerLogger) Debugf(string, ...any)       {}
