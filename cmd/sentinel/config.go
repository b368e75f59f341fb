package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/sentinel/pkg/engine"
)

// manifest is the on-disk YAML shape for `sentinel serve -f <file>`.
type manifest struct {
	Name     string `yaml:"name"`
	ShmName  string `yaml:"shm_name"`
	SSLCert  string `yaml:"ssl_cert"`
	SSLKey   string `yaml:"ssl_key"`
	Listen   string `yaml:"listen"`
	Store    string `yaml:"store"` // "mem" or "bolt"
	BoltPath string `yaml:"bolt_path"`

	Checks struct {
		Active struct {
			Type                   string           `yaml:"type"`
			TimeoutSeconds         int              `yaml:"timeout_seconds"`
			Concurrency            int              `yaml:"concurrency"`
			HTTPPath               string           `yaml:"http_path"`
			HTTPSSNI               string           `yaml:"https_sni"`
			HTTPSVerifyCertificate *bool            `yaml:"https_verify_certificate"`
			ReqHeaders             []string         `yaml:"req_headers"`
			Healthy                thresholdOptions `yaml:"healthy"`
			Unhealthy              thresholdOptions `yaml:"unhealthy"`
		} `yaml:"active"`
		Passive struct {
			Type      string           `yaml:"type"`
			Healthy   thresholdOptions `yaml:"healthy"`
			Unhealthy thresholdOptions `yaml:"unhealthy"`
		} `yaml:"passive"`
	} `yaml:"checks"`

	Targets []struct {
		IP         string `yaml:"ip"`
		Port       int    `yaml:"port"`
		Hostname   string `yaml:"hostname"`
		HostHeader string `yaml:"hostheader"`
		Healthy    bool   `yaml:"healthy"`
	} `yaml:"targets"`
}

type thresholdOptions struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	Successes       *int     `yaml:"successes"`
	HTTPStatuses    []string `yaml:"http_statuses"`
	TCPFailures     *int     `yaml:"tcp_failures"`
	Timeouts        *int     `yaml:"timeouts"`
	HTTPFailures    *int     `yaml:"http_failures"`
}

func loadManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// toEngineConfig overlays the manifest's explicitly-set fields onto
// DefaultConfig, leaving every field the manifest is silent on at its
// default. A threshold field is "set" only when the manifest's pointer is
// non-nil, so an explicit 0 can be distinguished from "not mentioned".
func (m manifest) toEngineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig(m.Name, m.ShmName)
	cfg.SSLCert = m.SSLCert
	cfg.SSLKey = m.SSLKey

	if m.Checks.Active.Type != "" {
		cfg.Checks.Active.Type = m.Checks.Active.Type
	}
	if m.Checks.Active.TimeoutSeconds != 0 {
		cfg.Checks.Active.TimeoutSeconds = m.Checks.Active.TimeoutSeconds
	}
	if m.Checks.Active.Concurrency != 0 {
		cfg.Checks.Active.Concurrency = m.Checks.Active.Concurrency
	}
	if m.Checks.Active.HTTPPath != "" {
		cfg.Checks.Active.HTTPPath = m.Checks.Active.HTTPPath
	}
	cfg.Checks.Active.HTTPSSNI = m.Checks.Active.HTTPSSNI
	if m.Checks.Active.HTTPSVerifyCertificate != nil {
		cfg.Checks.Active.HTTPSVerifyCertificate = *m.Checks.Active.HTTPSVerifyCertificate
	}
	cfg.Checks.Active.ReqHeaders = m.Checks.Active.ReqHeaders
	applyThreshold(&cfg.Checks.Active.Healthy, m.Checks.Active.Healthy)
	applyThreshold(&cfg.Checks.Active.Unhealthy, m.Checks.Active.Unhealthy)

	if m.Checks.Passive.Type != "" {
		cfg.Checks.Passive.Type = m.Checks.Passive.Type
	}
	applyThreshold(&cfg.Checks.Passive.Healthy, m.Checks.Passive.Healthy)
	applyThreshold(&cfg.Checks.Passive.Unhealthy, m.Checks.Passive.Unhealthy)

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func applyThreshold(dst *engine.ThresholdConfig, src thresholdOptions) {
	if src.IntervalSeconds != 0 {
		dst.IntervalSeconds = src.IntervalSeconds
	}
	if src.Successes != nil {
		dst.Successes = *src.Successes
	}
	if src.TCPFailures != nil {
		dst.TCPFailures = *src.TCPFailures
	}
	if src.Timeouts != nil {
		dst.Timeouts = *src.Timeouts
	}
	if src.HTTPFailures != nil {
		dst.HTTPFailures = *src.HTTPFailures
	}
	if len(src.HTTPStatuses) > 0 {
		dst.HTTPStatuses = parseStatusRanges(src.HTTPStatuses)
	}
}

// parseStatusRanges parses manifest strings like "200", "500-505" into a
// StatusSet. Malformed entries are skipped rather than failing the load,
// matching the teacher's permissive YAML-to-struct conventions elsewhere
// in cmd/warren.
func parseStatusRanges(entries []string) engine.StatusSet {
	var ranges [][2]int
	for _, e := range entries {
		lo, hi, ok := parseRange(e)
		if !ok {
			continue
		}
		ranges = append(ranges, [2]int{lo, hi})
	}
	return engine.NewStatusSet(ranges...)
}

func parseRange(s string) (lo, hi int, ok bool) {
	var a, b int
	if n, _ := fmt.Sscanf(s, "%d-%d", &a, &b); n == 2 {
		return a, b, true
	}
	if n, _ := fmt.Sscanf(s, "%d", &a); n == 1 {
		return a, a, true
	}
	return 0, 0, false
}
