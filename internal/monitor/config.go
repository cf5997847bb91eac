/*
Copyright (c) wg-monitor authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitor

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Context is the immutable configuration consumed by the Orchestrator, see
// spec §3. It is built by layering DefaultConfig(), an optional YAML file,
// and CLI flag overrides, mirroring the teacher's Config/DefaultConfig/
// ReadConfig/PrepareConfig shape.
type Context struct {
	Iface            string        `yaml:"interface"`
	Interval         time.Duration `yaml:"interval"`
	LostThreshold    time.Duration `yaml:"lost_threshold"`
	ReportSchedule   ReportSchedule `yaml:"-"`
	PeerFile         string        `yaml:"peer_file"`
	URLFile          string        `yaml:"url_file"`
	CABundle         string        `yaml:"ca_bundle"`
	Command          string        `yaml:"command"`
	DispatchMode     DispatchMode  `yaml:"-"`
	DryRun           bool          `yaml:"dry_run"`
	Locale           string        `yaml:"language"`
	WaitForInterface bool          `yaml:"wait_for_interface"`
	Progress         bool          `yaml:"progress"`
	Hostname         string        `yaml:"hostname"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	MonitoringPort   int           `yaml:"monitoring_port"`

	// PeerSet, URLs, Translations are resolved from file discovery + the
	// translation catalog, not set directly from YAML/CLI scalars.
	PeerSet      map[string]bool      `yaml:"-"`
	URLs         []string             `yaml:"-"`
	Translations map[string]*Translation `yaml:"-"`

	// ReminderDelaysSeconds lets the YAML file/CLI set the five-element
	// schedule as plain integers; ReportSchedule is derived from this.
	ReminderDelaysSeconds [5]int `yaml:"reminder_delays_seconds"`
}

// DefaultConfig returns the documented defaults (§4.10).
func DefaultConfig() *Context {
	sched := DefaultReportSchedule()
	var secs [5]int
	for i, d := range sched {
		secs[i] = int(d / time.Second)
	}
	return &Context{
		Iface:                 "wg0",
		Interval:              60 * time.Second,
		LostThreshold:         600 * time.Second,
		ReportSchedule:        sched,
		ReminderDelaysSeconds: secs,
		DispatchMode:          DispatchURLOnly,
		Locale:                "en",
		WaitForInterface:      true,
		MonitoringPort:        8080,
		PeerSet:               make(map[string]bool),
	}
}

// ReadConfig loads an optional YAML file on top of DefaultConfig(), the way
// ptp/sptp/client.ReadConfig layers a file over compiled-in defaults.
func ReadConfig(path string) (*Context, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.ReportSchedule = scheduleFromSeconds(cfg.ReminderDelaysSeconds)
	return cfg, nil
}

func scheduleFromSeconds(secs [5]int) ReportSchedule {
	var s ReportSchedule
	for i, v := range secs {
		s[i] = time.Duration(v) * time.Second
	}
	return s
}

// FlagOverrides carries the subset of CLI flags the operator actually set,
// mirroring PrepareConfig's setFlags map[string]bool + warn(name) pattern:
// only flags present in Set are applied, and applying one over a
// file-provided value is logged at Warning so operators notice the
// precedence silently taking effect.
type FlagOverrides struct {
	Set    map[string]bool
	Values map[string]interface{}
}

// warn logs that a CLI flag is overriding a config-file value, matching the
// teacher's PrepareConfig: an explicit flag always wins, but doing so
// silently makes config debugging painful.
func warn(name string) {
	log.Warningf("CLI flag --%s overrides config file value", name)
}

// Apply layers CLI-flag values onto cfg, honoring only the flags
// the operator explicitly set.
func (o FlagOverrides) Apply(cfg *Context) {
	set := func(name string, apply func()) {
		if !o.Set[name] {
			return
		}
		warn(name)
		apply()
	}

	set("interface", func() { cfg.Iface = o.Values["interface"].(string) })
	set("peer-file", func() { cfg.PeerFile = o.Values["peer-file"].(string) })
	set("url-file", func() { cfg.URLFile = o.Values["url-file"].(string) })
	set("ca-bundle", func() { cfg.CABundle = o.Values["ca-bundle"].(string) })
	set("command", func() { cfg.Command = o.Values["command"].(string) })
	set("both", func() {
		if o.Values["both"].(bool) {
			cfg.DispatchMode = DispatchBoth
		}
	})
	set("interval", func() { cfg.Interval = time.Duration(o.Values["interval"].(int)) * time.Second })
	set("lost-threshold", func() { cfg.LostThreshold = time.Duration(o.Values["lost-threshold"].(int)) * time.Second })
	set("wait-for-interface", func() { cfg.WaitForInterface = o.Values["wait-for-interface"].(bool) })
	set("progress", func() { cfg.Progress = o.Values["progress"].(bool) })
	set("language", func() { cfg.Locale = o.Values["language"].(string) })
	set("dry-run", func() { cfg.DryRun = o.Values["dry-run"].(bool) })
	set("hostname", func() { cfg.Hostname = o.Values["hostname"].(string) })
	set("command-timeout", func() { cfg.CommandTimeout = time.Duration(o.Values["command-timeout"].(int)) * time.Second })
	set("monitoring-port", func() { cfg.MonitoringPort = o.Values["monitoring-port"].(int) })
	set("reminder-delays", func() {
		delays := o.Values["reminder-delays"].([]int)
		var sched ReportSchedule
		for i := 0; i < len(sched) && i < len(delays); i++ {
			sched[i] = time.Duration(delays[i]) * time.Second
		}
		cfg.ReportSchedule = sched
	})
}

// Validate rejects nonsensical configurations, mirroring
// ptp/sptp/client.Config.Validate.
func (cfg *Context) Validate() error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if cfg.LostThreshold <= 0 {
		return fmt.Errorf("lost threshold must be positive")
	}
	for i := 1; i < len(cfg.ReportSchedule); i++ {
		if cfg.ReportSchedule[i] < cfg.ReportSchedule[i-1] {
			return fmt.Errorf("reminder schedule must be non-decreasing, got %v", cfg.ReportSchedule)
		}
	}
	switch cfg.DispatchMode {
	case DispatchURLOnly:
		if len(cfg.URLs) == 0 {
			return fmt.Errorf("dispatch mode url-only requires at least one URL")
		}
	case DispatchCommandOnly:
		if cfg.Command == "" {
			return fmt.Errorf("dispatch mode command-only requires a command")
		}
	case DispatchBoth:
		if len(cfg.URLs) == 0 || cfg.Command == "" {
			return fmt.Errorf("dispatch mode both requires a command and at least one URL")
		}
	}
	if _, ok := cfg.Translations[cfg.Locale]; !ok {
		return fmt.Errorf("unknown language %q", cfg.Locale)
	}
	return nil
}
