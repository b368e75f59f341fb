package engine

import (
	"github.com/cuemby/sentinel/pkg/store"
	"github.com/cuemby/sentinel/pkg/target"
)

// CounterBreakdown is the four-byte packed counter word, unpacked.
type CounterBreakdown struct {
	Success        int
	HTTPFailure    int
	TCPFailure     int
	TimeoutFailure int
}

// TargetStatus decorates a target with its current internal health and
// counter breakdown, for inspection tooling (CLI `target list`).
type TargetStatus struct {
	IP         string
	Port       int
	Hostname   string
	HostHeader string
	Health     string
	Verdict    bool
	Counters   CounterBreakdown
}

// GetTargetList returns every target this worker's index has seen,
// decorated with its counter breakdown read from the shared store. Order
// matches the local index's insertion order, which need not match any
// other worker's.
func (e *Engine) GetTargetList() ([]TargetStatus, error) {
	var result []TargetStatus
	var outerErr error

	e.index.Each(func(t *target.Target) {
		if outerErr != nil {
			return
		}
		word, err := e.counterWord(t.IP, t.Port, t.Hostname)
		if err != nil {
			outerErr = err
			return
		}
		result = append(result, TargetStatus{
			IP:         t.IP,
			Port:       t.Port,
			Hostname:   t.Hostname,
			HostHeader: t.HostHeader,
			Health:     t.InternalHealth.String(),
			Verdict:    t.InternalHealth.Verdict(),
			Counters: CounterBreakdown{
				Success:        int(store.ExtractCounter(word, store.ShiftSuccess)),
				HTTPFailure:    int(store.ExtractCounter(word, store.ShiftHTTP)),
				TCPFailure:     int(store.ExtractCounter(word, store.ShiftTCP)),
				TimeoutFailure: int(store.ExtractCounter(word, store.ShiftTimeout)),
			},
		})
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return result, nil
}

func (e *Engine) counterWord(ip string, port int, hostname string) (int64, error) {
	data, ok, err := e.store.Get(e.keys.Counter(ip, port, hostname))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return store.DecodeInt64(data), nil
}
