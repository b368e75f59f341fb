/*
Package events is the in-process event bus that fans verdict and lifecycle
transitions out to every worker's subscriber.

	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()

	sub, unsubscribe := bus.RegisterWeak("worker-1")
	defer unsubscribe()

	bus.Post("worker-1", events.Healthy, "10.0.0.1", 80, "")

	for ev := range sub {
		// mirror ev into this worker's target.Index
	}

Six event types exist: the four verdict states (Healthy, Unhealthy,
MostlyHealthy, MostlyUnhealthy) plus the two lifecycle events Remove and
Clear. Posting never blocks beyond the bus's internal buffer; a slow or
abandoned subscriber has events dropped rather than stalling every other
worker.
*/
package events
