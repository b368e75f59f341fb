package store

import "time"

// Store is the shared key-value segment collaborator described in the
// engine's external interfaces: get/set/incr on byte-string values, plus a
// named-lock primitive with a (timeout, exptime) contract. It is the one
// piece of truly shared state in the engine — everything else (the
// per-worker index, status_ver) is a local derived projection.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// BoltStore keeps the segment in a file, but bbolt lets only one process
// hold that file open at a time.
type Store interface {
	// Get returns the raw value for key, or ok=false if it does not exist.
	Get(key string) (value []byte, ok bool, err error)

	// Set writes value for key, creating or overwriting it.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Incr atomically adds delta to the int64 stored at key (treating an
	// absent key as 0) and returns the post-increment value.
	Incr(key string, delta int64) (int64, error)

	// TryAcquire attempts to atomically create a lock record for key that
	// does not already hold an unexpired lock. It returns acquired=false,
	// nil error when the lock is currently held by someone else — that is
	// not a failure, just contention. exptime bounds how long the lock is
	// held if the owner never calls Release (auto-release, matching the
	// shared-memory dict's "add with expiry" semantics).
	TryAcquire(key string, exptime time.Duration) (acquired bool, err error)

	// Release releases a lock previously acquired with TryAcquire. Safe to
	// call even if the lock already expired.
	Release(key string) error
}
