// Package lock provides the named-lock helpers callers use around
// store.Store.TryAcquire/Release: a blocking WithLock for suspend-capable
// callers, and a WithLockAsync that never blocks, deferring contended work
// to a background retry.
package lock
