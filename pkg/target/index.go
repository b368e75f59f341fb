package target

import (
	"sync"
	"sync/atomic"
)

// Index is the per-worker two-layer lookup cache (ip -> port -> hostname ->
// Target) plus the ordered list it was built from. It is a derived
// projection of the shared store: the only mutators are the local worker's
// synchronous Add/Remove/Clear calls and the event-bus subscriber's
// SetHealth calls (see pkg/engine). statusVer increments exactly when a SetHealth
// call flips the public boolean verdict.
type Index struct {
	mu        sync.RWMutex
	byIP      map[string]map[int]map[string]*Target
	order     []*Target
	statusVer int64
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{byIP: make(map[string]map[int]map[string]*Target)}
}

// Add inserts t if no target with the same key is already present. It
// reports whether the target already existed (in which case nothing was
// mutated, including InternalHealth).
func (idx *Index) Add(t *Target) (existed bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.addLocked(t)
}

func (idx *Index) addLocked(t *Target) (existed bool) {
	byPort, ok := idx.byIP[t.IP]
	if !ok {
		byPort = make(map[int]map[string]*Target)
		idx.byIP[t.IP] = byPort
	}
	byHost, ok := byPort[t.Port]
	if !ok {
		byHost = make(map[string]*Target)
		byPort[t.Port] = byHost
	}
	if _, exists := byHost[t.Hostname]; exists {
		return true
	}
	byHost[t.Hostname] = t
	idx.order = append(idx.order, t)
	return false
}

// Get looks up a target by identity.
func (idx *Index) Get(ip string, port int, hostname string) (*Target, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	t, ok := idx.getLocked(ip, port, hostname)
	return t, ok
}

func (idx *Index) getLocked(ip string, port int, hostname string) (*Target, bool) {
	byPort, ok := idx.byIP[ip]
	if !ok {
		return nil, false
	}
	byHost, ok := byPort[port]
	if !ok {
		return nil, false
	}
	t, ok := byHost[hostname]
	return t, ok
}

// Remove deletes a target, pruning empty leaf maps. Reports whether it existed.
func (idx *Index) Remove(ip string, port int, hostname string) (existed bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byPort, ok := idx.byIP[ip]
	if !ok {
		return false
	}
	byHost, ok := byPort[port]
	if !ok {
		return false
	}
	if _, ok := byHost[hostname]; !ok {
		return false
	}
	delete(byHost, hostname)
	if len(byHost) == 0 {
		delete(byPort, port)
	}
	if len(byPort) == 0 {
		delete(idx.byIP, ip)
	}

	for i, t := range idx.order {
		if t.IP == ip && t.Port == port && t.Hostname == hostname {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the index synchronously.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byIP = make(map[string]map[int]map[string]*Target)
	idx.order = nil
}

// Each calls fn for every target in insertion order. fn must not mutate the
// index.
func (idx *Index) Each(fn func(*Target)) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, t := range idx.order {
		fn(t)
	}
}

// Len returns the number of indexed targets.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// SetHealth updates InternalHealth for a target, synthesizing an entry (as
// the event subscriber does for a remote add it never saw directly) when
// one does not already exist. It reports whether the public boolean
// verdict flipped, bumping statusVer exactly then.
func (idx *Index) SetHealth(ip string, port int, hostname string, h Health) (flipped bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.getLocked(ip, port, hostname)
	if !ok {
		t = &Target{IP: ip, Port: port, Hostname: hostname, InternalHealth: h}
		idx.addLocked(t)
		// A synthesized target has no prior verdict to compare against;
		// treat its initial verdict as a flip so consumers observe it.
		atomic.AddInt64(&idx.statusVer, 1)
		return true
	}

	before := t.InternalHealth.Verdict()
	t.InternalHealth = h
	after := h.Verdict()
	if before != after {
		atomic.AddInt64(&idx.statusVer, 1)
		return true
	}
	return false
}

// StatusVer returns the current status_ver. Non-decreasing; consumers poll
// it to detect verdict changes cheaply.
func (idx *Index) StatusVer() int64 {
	return atomic.LoadInt64(&idx.statusVer)
}
