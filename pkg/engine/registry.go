package engine

import (
	"context"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/store"
	"github.com/cuemby/sentinel/pkg/target"
)

const registryLockTimeout = 5 * time.Second
const registryLockExptime = 10 * time.Second

// AddTarget registers a target. A triple already present in the list is a
// no-op success that does not reset existing state. Ordering is state
// key before list: a concurrent worker reloading the list must never see a
// target whose state key is missing.
func (e *Engine) AddTarget(ctx context.Context, ip string, port int, hostname, hostheader string, healthyInit bool) error {
	return e.locks.WithLock(ctx, e.keys.TargetListLock(), registryLockTimeout, registryLockExptime, func() error {
		list, err := e.loadList()
		if err != nil {
			return err
		}
		for _, t := range list {
			if t.IP == ip && t.Port == port && t.Hostname == hostname {
				return nil
			}
		}

		initial := target.Unhealthy
		if healthyInit {
			initial = target.Healthy
		}

		if err := e.store.Set(e.keys.State(ip, port, hostname), store.EncodeInt64(int64(initial))); err != nil {
			return err
		}

		t := &target.Target{IP: ip, Port: port, Hostname: hostname, HostHeader: hostheader, InternalHealth: initial}
		list = append(list, t)
		if err := e.saveList(list); err != nil {
			return err
		}

		e.index.Add(t)
		e.boot.Schedule(func() { e.bus.Post(e.cfg.Name, eventForHealth(initial), ip, port, hostname) })
		return nil
	})
}

// RemoveTarget deregisters a target. Ordering is list before state: a
// worker reloading the list must never find a target whose state has
// already been erased.
func (e *Engine) RemoveTarget(ctx context.Context, ip string, port int, hostname string) error {
	return e.locks.WithLock(ctx, e.keys.TargetListLock(), registryLockTimeout, registryLockExptime, func() error {
		list, err := e.loadList()
		if err != nil {
			return err
		}

		kept := list[:0]
		found := false
		for _, t := range list {
			if t.IP == ip && t.Port == port && t.Hostname == hostname {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if !found {
			return nil
		}

		if err := e.saveList(kept); err != nil {
			return err
		}
		if err := e.store.Delete(e.keys.State(ip, port, hostname)); err != nil {
			return err
		}
		if err := e.store.Delete(e.keys.Counter(ip, port, hostname)); err != nil {
			return err
		}

		e.index.Remove(ip, port, hostname)
		e.bus.Post(e.cfg.Name, events.Remove, ip, port, hostname)
		return nil
	})
}

// Clear removes every target. The list is replaced first so a concurrent
// reader never observes a partially-deleted set.
func (e *Engine) Clear(ctx context.Context) error {
	return e.locks.WithLock(ctx, e.keys.TargetListLock(), registryLockTimeout, registryLockExptime, func() error {
		list, err := e.loadList()
		if err != nil {
			return err
		}
		if err := e.saveList(nil); err != nil {
			return err
		}
		for _, t := range list {
			if err := e.store.Delete(e.keys.State(t.IP, t.Port, t.Hostname)); err != nil {
				return err
			}
			if err := e.store.Delete(e.keys.Counter(t.IP, t.Port, t.Hostname)); err != nil {
				return err
			}
		}
		e.index.Clear()
		e.bus.Post(e.cfg.Name, events.Clear, "", 0, "")
		return nil
	})
}

// GetTargetStatus returns the public boolean verdict for a target, or
// ErrTargetNotFound if the local index has never seen it.
func (e *Engine) GetTargetStatus(ip string, port int, hostname string) (bool, error) {
	t, ok := e.index.Get(ip, port, hostname)
	if !ok {
		return false, ErrTargetNotFound
	}
	return t.InternalHealth.Verdict(), nil
}

// SetTargetStatus forces a target's health, bypassing the threshold state
// machine.
func (e *Engine) SetTargetStatus(ctx context.Context, ip string, port int, hostname string, healthy bool) error {
	return e.mach.SetStatus(ctx, ip, port, hostname, healthy)
}

// SetAllTargetStatusesForHostname forces every target matching hostname and
// port, aggregating any per-target failures into one error.
func (e *Engine) SetAllTargetStatusesForHostname(ctx context.Context, hostname string, port int, healthy bool) error {
	return e.mach.SetAllByHostname(ctx, hostname, port, healthy)
}

func (e *Engine) loadList() (target.List, error) {
	data, ok, err := e.store.Get(e.keys.TargetList())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return target.DecodeList(data)
}

func (e *Engine) saveList(list target.List) error {
	data, err := list.Encode()
	if err != nil {
		return err
	}
	return e.store.Set(e.keys.TargetList(), data)
}

func eventForHealth(h target.Health) events.Type {
	switch h {
	case target.Healthy:
		return events.Healthy
	case target.Unhealthy:
		return events.Unhealthy
	case target.MostlyHealthy:
		return events.MostlyHealthy
	default:
		return events.MostlyUnhealthy
	}
}
