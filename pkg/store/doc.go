/*
Package store implements the shared key-value segment the health-checking
engine uses to coordinate across worker goroutines (BoltStore keeps the
segment in a file that one process at a time can hold open): the target
list blob, per-target internal-health
and packed-counter-word keys, and the named-lock primitive that backs the
target-list lock, per-target locks, and the scheduler's period locks.

Keys are namespaced "<shm>:<name>:<role>" (see Keys) so that unrelated
engine instances can safely share one Store.

The packed counter word is a plain 32-bit integer with one byte per
category (see codec.go); Store.Incr operates on an opaque int64 so the same
primitive backs both the counter word and any other atomic counters a
caller needs.
*/
package store
