package store

import "fmt"

// Keys builds the namespaced key set for one engine instance. Keys are
// prefixed "<global>:<name>:<role>" so that multiple engine instances can
// safely share a single Store as long as each uses a unique name.
type Keys struct {
	global string
	name   string
}

// NewKeys returns a Keys builder for the given shm segment name and engine
// instance name. Both must be non-empty; uniqueness of name within the
// segment is the caller's responsibility and is not checked here or at
// engine construction.
func NewKeys(shmName, name string) Keys {
	return Keys{global: shmName, name: name}
}

func (k Keys) prefix(role string) string {
	return fmt.Sprintf("%s:%s:%s", k.global, k.name, role)
}

// TargetList is the key under which the serialized, ordered target list lives.
func (k Keys) TargetList() string {
	return k.prefix("target_list")
}

// TargetListLock guards mutations of the target list.
func (k Keys) TargetListLock() string {
	return k.prefix("target_list_lock")
}

// targetID is the stable identity used to key per-target state: the triple
// (ip, port, hostname) joined so that two targets differing only in one
// field never collide.
func targetID(ip string, port int, hostname string) string {
	return fmt.Sprintf("%s/%d/%s", ip, port, hostname)
}

// State is the per-target internal-health key.
func (k Keys) State(ip string, port int, hostname string) string {
	return fmt.Sprintf("%s:%s", k.prefix("state"), targetID(ip, port, hostname))
}

// Counter is the per-target packed counter-word key.
func (k Keys) Counter(ip string, port int, hostname string) string {
	return fmt.Sprintf("%s:%s", k.prefix("counter"), targetID(ip, port, hostname))
}

// TargetLock guards the read-modify-write of a single target's counter/state.
func (k Keys) TargetLock(ip string, port int, hostname string) string {
	return fmt.Sprintf("%s:%s", k.prefix("target_lock"), targetID(ip, port, hostname))
}

// PeriodLock guards a scheduler tick kind ("healthy" or "unhealthy") so only
// one worker across the fleet runs that tick's probes.
func (k Keys) PeriodLock(kind string) string {
	return fmt.Sprintf("%s:%s", k.prefix("period_lock"), kind)
}
