// Package engine is the health-checking engine's public surface: one
// Engine per (shm_name, name) namespace, wiring together the shared store,
// named locking, the per-worker target index, the counter-threshold state
// machine, the active prober, the scheduler, and the event bus.
package engine
