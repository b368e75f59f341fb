// Package scheduler runs the two independent active-check tickers
// (healthy-interval, unhealthy-interval), each guarded by a cross-worker
// period lock so only one worker in the fleet actually probes on a given
// tick.
package scheduler
