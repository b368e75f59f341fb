/*
Package target defines the monitored endpoint identity and the two data
structures built around it:

  - List, the ordered sequence persisted as a single blob under the shared
    store's target-list key (see pkg/store).
  - Index, the per-worker ip -> port -> hostname -> Target cache that gives
    O(1) lookup and tracks status_ver, the monotonic counter that flips
    whenever a target's public boolean verdict changes.

Index is a derived projection, not a source of truth: the shared store owns
the authoritative list and per-target state. Only two things are allowed to
mutate an Index — the owning worker's synchronous Add/Remove/Clear calls,
and the event-bus subscriber's SetHealth calls reacting to peer verdicts
(see pkg/engine).
*/
package target
