// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive keeps snapshots evicted from history in an embedded
// BadgerDB instance running in memory.
//
// The archive is the warm tier behind the history ring:
//
//	Hot (history ring) → Warm (archive, BadgerDB in memory)
//
// Snapshots are stored as JSON keyed by big-endian scan id, so iteration
// order is scan order. Engine-private memory is not archived.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package archive

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// ErrNotFound is returned by Load when no archived snapshot has the id.
var ErrNotFound = errors.New("snapshot not archived")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("archive closed")

// keyPrefix namespaces snapshot keys.
var keyPrefix = []byte("snap/")

// Config holds configuration for a Store.
type Config struct {
	// MaxEntries bounds the number of archived snapshots. When exceeded the
	// lowest scan ids are dropped first. Zero means unbounded.
	MaxEntries int

	// Logger receives BadgerDB's internal logging. If nil, it is disabled.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a history sink backed by an in-memory BadgerDB.
//
// Description:
//
//	Store implements the history package's Sink interface plus Reset. A
//	snapshot stored under an id that is already present replaces it, which
//	matches history's "most recent wins" lookup after a restart reuses ids.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	db     *badger.DB
	max    int
	count  int
	closed bool
}

// Open creates an empty in-memory archive.
//
// Inputs:
//
//	cfg - Store configuration.
//
// Outputs:
//
//	*Store - The archive. Caller must call Close() when done.
//	error - Non-nil if BadgerDB cannot be opened or MaxEntries is negative.
func Open(cfg Config) (*Store, error) {
	if cfg.MaxEntries < 0 {
		return nil, errors.New("max entries must not be negative")
	}
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithSyncWrites(false).
		WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, max: cfg.MaxEntries}, nil
}

func encodeKey(scanID uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], scanID)
	return key
}

func decodeKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(keyPrefix):])
}

// Store archives snap, replacing any snapshot with the same scan id.
func (s *Store) Store(snap *state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snap.ScanID(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	key := encodeKey(snap.ScanID())
	err = s.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		switch {
		case errors.Is(getErr, badger.ErrKeyNotFound):
			s.count++
		case getErr != nil:
			return getErr
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("store snapshot %d: %w", snap.ScanID(), err)
	}

	if s.max > 0 && s.count > s.max {
		return s.trimLocked(s.count - s.max)
	}
	return nil
}

// trimLocked drops the n lowest scan ids. Caller holds s.mu.
func (s *Store) trimLocked(n int) error {
	var drop [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid() && len(drop) < n; it.Next() {
			drop = append(drop, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan archive: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range drop {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trim archive: %w", err)
	}
	s.count -= len(drop)
	return nil
}

// Load returns the archived snapshot with scanID.
//
// Outputs:
//
//	*state.Snapshot - The snapshot, with empty memory.
//	error - ErrNotFound when absent.
func (s *Store) Load(scanID uint64) (*state.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var snap *state.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(scanID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := state.DecodeSnapshot(val)
			if err != nil {
				return err
			}
			snap = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d: %w", scanID, err)
	}
	return snap, nil
}

// ScanIDs returns every archived scan id in ascending order.
func (s *Store) ScanIDs() ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var ids []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, decodeKey(it.Item().Key()))
		}
		return nil
	})
	return ids, err
}

// Len returns the number of archived snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Reset drops every archived snapshot.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.DropPrefix(keyPrefix); err != nil {
		return fmt.Errorf("reset archive: %w", err)
	}
	s.count = 0
	return nil
}

// Close releases the database. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
