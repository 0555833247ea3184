// Package blobstore implements the Blob Identity Store: the bijection
// between blob hashes and the dense integers ("blob numbers") used
// everywhere else in the database as a compact stand-in for a hash.
package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/xrefdb/elixir/pkg/xhash"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// Store allocates and resolves blob numbers against a Database, guarded
// by an in-process mutex so concurrent Intern calls from the Update
// Coordinator's worker pool never race on nextB.
type Store struct {
	mu sync.Mutex
	db xrefcore.Database

	// nextB mirrors the persisted meta record; it is read once at
	// construction and thereafter only ever incremented under mu,
	// together with the corresponding database write, so the in-memory
	// and on-disk values never diverge.
	nextB uint32
}

// Open constructs a Store, reconciling nextB with the database's
// persisted record: on restart, nextB is set to max(existing B)+1 if the
// persisted record is stale or absent.
func Open(ctx context.Context, db xrefcore.Database) (*Store, error) {
	persisted, err := xrefcore.ReadNextBlobNum(ctx, db)
	if err != nil {
		return nil, err
	}

	maxSeen, err := scanMaxBlobNum(ctx, db)
	if err != nil {
		return nil, err
	}

	next := persisted
	if maxSeen+1 > next {
		next = maxSeen + 1
	}
	return &Store{db: db, nextB: next}, nil
}

// scanMaxBlobNum returns the largest blob number ever allocated (0 if
// none), by scanning num_to_hash's keys (which are the blob numbers
// themselves).
// It is the fallback path used only when the persisted next_B record is
// missing or stale, so an O(n) scan at startup is an acceptable price
// for never losing the bijection after a crash mid-allocation.
func scanMaxBlobNum(ctx context.Context, db xrefcore.Database) (uint32, error) {
	var max uint32
	var seenAny bool
	err := db.IterPrefix(ctx, xrefcore.MapNumToHash, nil, func(key, _ []byte) bool {
		n, decErr := xrefcore.DecodeUint32BE(key)
		if decErr != nil {
			return true
		}
		seenAny = true
		if n > max {
			max = n
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if !seenAny {
		return 0, nil
	}
	return max, nil
}

// Intern resolves h to its blob number, allocating a fresh one and
// recording the bijection if h has never been seen before. The
// allocation and every map it touches commit in a single batch, so a
// crash mid-Intern never leaves a blob number allocated without its hash
// recorded, or vice versa.
func (s *Store) Intern(ctx context.Context, h xhash.Hash, path string) (blob uint32, isNew bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.db.Get(ctx, xrefcore.MapHashToNum, h.Bytes())
	if err != nil {
		return 0, false, err
	}
	if ok {
		existing, decErr := xrefcore.DecodeUint32BE(raw)
		if decErr != nil {
			return 0, false, fmt.Errorf("%w: decode blob number for %s: %w", xrefcore.ErrDatabaseCorrupt, h, decErr)
		}
		if path != "" {
			if err := s.addPath(ctx, existing, path); err != nil {
				return 0, false, err
			}
		}
		return existing, false, nil
	}

	b := s.nextB
	err = s.db.WithBatch(ctx, func(batch *xrefcore.Batch) error {
		if err := batch.Put(ctx, xrefcore.MapHashToNum, h.Bytes(), xrefcore.EncodeUint32BE(b)); err != nil {
			return err
		}
		if err := batch.Put(ctx, xrefcore.MapNumToHash, xrefcore.EncodeUint32BE(b), h.Bytes()); err != nil {
			return err
		}
		if path != "" {
			if err := batch.Put(ctx, xrefcore.MapNumToPaths, xrefcore.EncodeUint32BE(b), xrefcore.EncodePathSet([]string{path})); err != nil {
				return err
			}
		}
		return xrefcore.WriteNextBlobNum(ctx, batch, b+1)
	})
	if err != nil {
		return 0, false, err
	}

	s.nextB = b + 1
	return b, true, nil
}

// addPath records an additional path under which an already-interned
// blob has been observed, merging into the existing path set.
func (s *Store) addPath(ctx context.Context, b uint32, path string) error {
	key := xrefcore.EncodeUint32BE(b)
	existing, ok, err := s.db.Get(ctx, xrefcore.MapNumToPaths, key)
	if err != nil {
		return err
	}
	paths := []string{path}
	if ok {
		paths = append(paths, xrefcore.DecodePathSet(existing)...)
	}
	return s.db.WithBatch(ctx, func(batch *xrefcore.Batch) error {
		return batch.Put(ctx, xrefcore.MapNumToPaths, key, xrefcore.EncodePathSet(paths))
	})
}

// Resolve returns the hash a blob number was assigned to. ok is false if
// b was never allocated.
func (s *Store) Resolve(ctx context.Context, b uint32) (xhash.Hash, bool, error) {
	raw, ok, err := s.db.Get(ctx, xrefcore.MapNumToHash, xrefcore.EncodeUint32BE(b))
	if err != nil || !ok {
		return xhash.Hash{}, false, err
	}
	h, err := xhash.FromBytes(raw)
	if err != nil {
		return xhash.Hash{}, false, fmt.Errorf("%w: decode hash for blob %d: %w", xrefcore.ErrDatabaseCorrupt, b, err)
	}
	return h, true, nil
}

// Paths returns every path a blob number has been observed under.
func (s *Store) Paths(ctx context.Context, b uint32) ([]string, error) {
	raw, ok, err := s.db.Get(ctx, xrefcore.MapNumToPaths, xrefcore.EncodeUint32BE(b))
	if err != nil || !ok {
		return nil, err
	}
	return xrefcore.DecodePathSet(raw), nil
}
