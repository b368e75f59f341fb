package engine

import (
	"fmt"
	"time"
)

// StatusSet is a set of HTTP status codes, built from discrete codes and/or
// ranges (e.g. 500..505), normalized once at construction for O(1) lookup.
type StatusSet struct {
	codes map[int]bool
}

// NewStatusSet builds a StatusSet from a list of [min, max] pairs; pass
// {code, code} for a single discrete status.
func NewStatusSet(ranges ...[2]int) StatusSet {
	s := StatusSet{codes: make(map[int]bool)}
	for _, r := range ranges {
		for c := r[0]; c <= r[1]; c++ {
			s.codes[c] = true
		}
	}
	return s
}

// Contains reports whether code is in the set.
func (s StatusSet) Contains(code int) bool {
	return s.codes[code]
}

// ThresholdConfig is the healthy.* or unhealthy.* block of a check profile.
type ThresholdConfig struct {
	IntervalSeconds int // active only; 0 disables the tick
	Successes       int
	HTTPStatuses    StatusSet
	TCPFailures     int
	Timeouts        int
	HTTPFailures    int
}

// ActiveConfig is checks.active.
type ActiveConfig struct {
	Type                   string // "http", "https", "tcp"
	TimeoutSeconds         int
	Concurrency            int
	HTTPPath               string
	HTTPSSNI               string
	HTTPSVerifyCertificate bool
	ReqHeaders             []string
	Healthy                ThresholdConfig
	Unhealthy              ThresholdConfig
}

// PassiveConfig is checks.passive.
type PassiveConfig struct {
	Type      string
	Healthy   ThresholdConfig
	Unhealthy ThresholdConfig
}

// ChecksConfig groups the active and passive check profiles.
type ChecksConfig struct {
	Active  ActiveConfig
	Passive PassiveConfig
}

// Config configures one Engine instance.
type Config struct {
	Name    string
	ShmName string
	SSLCert string
	SSLKey  string
	Checks  ChecksConfig
}

// DefaultConfig returns the documented defaults for every recognized
// option. Callers start from this and override only what they need.
func DefaultConfig(name, shmName string) Config {
	return Config{
		Name:    name,
		ShmName: shmName,
		Checks: ChecksConfig{
			Active: ActiveConfig{
				Type:                   "http",
				TimeoutSeconds:         1,
				Concurrency:            10,
				HTTPPath:               "/",
				HTTPSVerifyCertificate: true,
				Healthy: ThresholdConfig{
					IntervalSeconds: 0,
					Successes:       2,
					HTTPStatuses:    NewStatusSet([2]int{200, 200}, [2]int{302, 302}),
				},
				Unhealthy: ThresholdConfig{
					IntervalSeconds: 0,
					HTTPStatuses:    NewStatusSet([2]int{429, 429}, [2]int{404, 404}, [2]int{500, 505}),
					TCPFailures:     2,
					Timeouts:        3,
					HTTPFailures:    5,
				},
			},
			Passive: PassiveConfig{
				Type: "http",
				Healthy: ThresholdConfig{
					Successes:    5,
					HTTPStatuses: NewStatusSet([2]int{200, 399}),
				},
				Unhealthy: ThresholdConfig{
					HTTPStatuses: NewStatusSet([2]int{429, 429}, [2]int{500, 500}, [2]int{503, 503}),
					TCPFailures:  2,
					Timeouts:     7,
					HTTPFailures: 5,
				},
			},
		},
	}
}

// Validate enforces the construction-time rules from the external
// interfaces: required fields, threshold ceilings, and the cross-field
// tcp_failures/http_failures consistency rule.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrConfigInvalid)
	}
	if c.ShmName == "" {
		return fmt.Errorf("%w: shm_name is required", ErrConfigInvalid)
	}
	if (c.SSLCert == "") != (c.SSLKey == "") {
		return fmt.Errorf("%w: ssl_cert and ssl_key must both be set or both be empty", ErrConfigInvalid)
	}
	switch c.Checks.Active.Type {
	case "http", "https", "tcp":
	default:
		return fmt.Errorf("%w: checks.active.type must be http, https, or tcp", ErrConfigInvalid)
	}
	// https_sni may be left empty: the prober falls back to a target's
	// hostheader or hostname for SNI, so an empty value is not fatal here.

	for _, th := range []ThresholdConfig{
		c.Checks.Active.Healthy, c.Checks.Active.Unhealthy,
		c.Checks.Passive.Healthy, c.Checks.Passive.Unhealthy,
	} {
		if th.Successes >= 255 || th.TCPFailures >= 255 || th.Timeouts >= 255 || th.HTTPFailures >= 255 {
			return fmt.Errorf("%w: all counter thresholds must be < 255", ErrConfigInvalid)
		}
	}

	if (c.Checks.Active.Type == "http" || c.Checks.Active.Type == "https") && c.Checks.Active.Unhealthy.HTTPFailures > 0 {
		if c.Checks.Active.Unhealthy.TCPFailures == 0 {
			return fmt.Errorf("%w: unhealthy.http_failures > 0 requires unhealthy.tcp_failures > 0", ErrConfigInvalid)
		}
	}
	if (c.Checks.Passive.Type == "http" || c.Checks.Passive.Type == "https") && c.Checks.Passive.Unhealthy.HTTPFailures > 0 {
		if c.Checks.Passive.Unhealthy.TCPFailures == 0 {
			return fmt.Errorf("%w: unhealthy.http_failures > 0 requires unhealthy.tcp_failures > 0", ErrConfigInvalid)
		}
	}

	return nil
}

// secondsToDuration converts a config's plain-integer seconds field to a
// time.Duration; 0 stays 0 (disabled), never a literal zero duration bug.
func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
