package prober

import (
	"context"
	"sync"

	"github.com/cuemby/sentinel/pkg/target"
)

// ProbeFunc probes a single target. Implementations are expected to report
// the outcome back into the state machine themselves (the engine supplies
// a closure that does so under the "active" profile thresholds).
type ProbeFunc func(ctx context.Context, t *target.Target)

// ScanConcurrent partitions targets round-robin into concurrency packages,
// runs concurrency-1 of them on spawned goroutines, and the remaining
// package on the calling goroutine to absorb its share of the work. ctx
// cancellation is checked between items within a package so a shutting-down
// worker stops issuing new probes promptly; probes already started run to
// completion.
func ScanConcurrent(ctx context.Context, targets []*target.Target, concurrency int, probe ProbeFunc) {
	if concurrency < 1 {
		concurrency = 1
	}
	packages := partitionRoundRobin(targets, concurrency)
	if len(packages) == 0 {
		return
	}

	var wg sync.WaitGroup
	last := len(packages) - 1
	for i := 0; i < last; i++ {
		wg.Add(1)
		go func(pkg []*target.Target) {
			defer wg.Done()
			runPackage(ctx, pkg, probe)
		}(packages[i])
	}
	runPackage(ctx, packages[last], probe)
	wg.Wait()
}

func runPackage(ctx context.Context, pkg []*target.Target, probe ProbeFunc) {
	for _, t := range pkg {
		if ctx.Err() != nil {
			return
		}
		probe(ctx, t)
	}
}

func partitionRoundRobin(targets []*target.Target, concurrency int) [][]*target.Target {
	packages := make([][]*target.Target, concurrency)
	for i, t := range targets {
		idx := i % concurrency
		packages[idx] = append(packages[idx], t)
	}
	// drop trailing empty packages so len(packages) reflects actual work.
	for len(packages) > 0 && len(packages[len(packages)-1]) == 0 {
		packages = packages[:len(packages)-1]
	}
	return packages
}
