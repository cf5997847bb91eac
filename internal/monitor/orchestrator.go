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
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
)

// FatalError wraps a classified probe error that should terminate the
// process, carrying the exit code the CLI layer should use.
type FatalError struct {
	ExitCode int
	Err      error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Exit codes, see spec §6 "Exit codes (stable)".
const (
	ExitSuccess           = 0
	ExitUnspecified       = 1
	ExitCLIParse          = 8
	ExitGenericException  = 9
	ExitMissingFiles      = 10
	ExitUnknownLanguage   = 11
	ExitCommandNotFound   = 12
	ExitNetworkError      = 13
	ExitOtherPermissions  = 14
	ExitFileEmpty         = 15
	ExitNonUTF8           = 16
)

// Orchestrator runs the top-level cycle: probe, step, sort, schedule,
// dispatch, sleep. See spec §4.9.
type Orchestrator struct {
	Cfg        *Context
	Probe      *Probe
	Registry   *PeerRegistry
	Scheduler  *ReportScheduler
	Composer   *BodyComposer
	Dispatcher *Dispatcher
	Stats      StatsServer
	Progress   ProgressPrinter

	serverName  string
	processedAt time.Time
	cycleIndex  int
}

// NewOrchestrator wires up an Orchestrator from its already-constructed
// collaborators.
func NewOrchestrator(cfg *Context, probe *Probe, scheduler *ReportScheduler, composer *BodyComposer, dispatcher *Dispatcher, stats StatsServer, progress ProgressPrinter) *Orchestrator {
	return &Orchestrator{
		Cfg:        cfg,
		Probe:      probe,
		Registry:   NewPeerRegistry(),
		Scheduler:  scheduler,
		Composer:   composer,
		Dispatcher: dispatcher,
		Stats:      stats,
		Progress:   progress,
	}
}

// Run resolves the server name, then loops cycles until ctx is cancelled or
// a fatal classification is returned. It is the single long-running call
// made by the CLI entrypoint.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.processedAt = time.Now()

	if err := o.resolveServerName(ctx); err != nil {
		return err
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debugf("systemd notify (ready) unavailable: %v", err)
	}

	ticker := time.NewTimer(0)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		if err := o.runCycle(ctx); err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return fatal
			}
			log.Errorf("cycle failed, skipping: %v", err)
		}
		if o.Stats != nil {
			o.Stats.ObserveTick(time.Since(start))
		}
		o.pingWatchdog()

		ticker.Reset(o.Cfg.Interval)
	}
}

func (o *Orchestrator) pingWatchdog() {
	if os.Getenv("WATCHDOG_USEC") == "" {
		return
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		log.Debugf("systemd watchdog ping failed: %v", err)
	}
}

// resolveServerName derives ServerName once from this node's own public key,
// unless Context.Hostname overrides it, and also performs the initial probe
// reachability check (including the interface-wait loop at startup).
func (o *Orchestrator) resolveServerName(ctx context.Context) error {
	if o.Cfg.Hostname != "" {
		o.serverName = o.Cfg.Hostname
		return o.probeOnceWithWait(ctx, true)
	}

	var key string
	probeOnce := func(ctx context.Context) error {
		k, err := o.Probe.PublicKey(ctx)
		if err != nil {
			return err
		}
		key = k
		return nil
	}

	if err := o.invokeWithFatalHandling(ctx, probeOnce, true); err != nil {
		return err
	}
	o.serverName = renderedName(derivePeerDisplay(key), o.activeTranslation())
	return nil
}

func (o *Orchestrator) probeOnceWithWait(ctx context.Context, startup bool) error {
	return o.invokeWithFatalHandling(ctx, func(ctx context.Context) error {
		_, err := o.Probe.PublicKey(ctx)
		return err
	}, startup)
}

// invokeWithFatalHandling runs probeOnce, routing NoSuchInterface through
// the Interface-Wait Loop and classifying every other error per the
// fatality rules in DESIGN.md (NeedElevation/ToolMissing always fatal;
// NetworkFailure/Generic fatal only at startup).
func (o *Orchestrator) invokeWithFatalHandling(ctx context.Context, probeOnce func(context.Context) error, startup bool) error {
	err := probeOnce(ctx)
	if err == nil {
		return nil
	}
	pe, ok := AsProbeError(err)
	if !ok {
		return &FatalError{ExitCode: ExitGenericException, Err: err}
	}

	switch pe.Kind {
	case ErrNoSuchInterface:
		if startup && !o.Cfg.WaitForInterface {
			return &FatalError{ExitCode: ExitMissingFiles, Err: fmt.Errorf("interface %s absent at startup and wait_for_interface is disabled", pe.Iface)}
		}
		if err := WaitForInterface(ctx, o.Cfg.Iface, probeOnce); err != nil {
			if _, ok := AsProbeError(err); ok {
				return o.invokeWithFatalHandling(ctx, func(context.Context) error { return err }, startup)
			}
			return err
		}
		return nil
	case ErrNeedElevation:
		return &FatalError{ExitCode: ExitOtherPermissions, Err: pe}
	case ErrToolMissing:
		return &FatalError{ExitCode: ExitCommandNotFound, Err: fmt.Errorf("%w (hint: set the WG environment variable)", pe)}
	case ErrNetworkFailure:
		if startup {
			return &FatalError{ExitCode: ExitNetworkError, Err: pe}
		}
		log.Warningf("transient network failure talking to wg: %v", pe)
		return nil
	default: // ErrGeneric
		if startup {
			return &FatalError{ExitCode: ExitGenericException, Err: pe}
		}
		log.Warningf("transient probe failure: %v", pe)
		return nil
	}
}

func (o *Orchestrator) activeTranslation() *Translation {
	tr := o.Cfg.Translations[o.Cfg.Locale]
	if tr == nil {
		tr = &Translation{}
	}
	return tr
}

// runCycle executes exactly one Orchestrator cycle.
func (o *Orchestrator) runCycle(ctx context.Context) error {
	var probeErr error
	if err := o.invokeWithFatalHandling(ctx, func(ctx context.Context) error {
		probeErr = o.Probe.LatestHandshakes(ctx, o.Registry)
		return probeErr
	}, o.cycleIndex == 0); err != nil {
		return err
	}
	if probeErr != nil {
		// A transient probe failure was logged above; skip the rest of the
		// cycle so peer states are not stepped against stale timestamps.
		return nil
	}

	now := time.Now()
	changedAnything := false
	changedKeys := make(map[string]bool)
	for key, p := range o.Registry.All() {
		if !o.Cfg.PeerSet[key] {
			continue
		}
		timedOut := now.Sub(p.referenceTime(o.processedAt)) > o.Cfg.LostThreshold
		next, changed := step(p.State, timedOut)
		p.State = next
		if changed {
			changedAnything = true
			changedKeys[key] = true
		}
	}

	buckets := SortPeers(o.Registry, o.Cfg.PeerSet)

	if o.Progress != nil {
		o.Progress.Print(buckets)
	}

	onlyReturns := len(buckets.JustReturned) > 0
	for key := range changedKeys {
		if !contains(buckets.JustReturned, key) {
			onlyReturns = false
			break
		}
	}

	decision := o.Scheduler.Decide(now, changedAnything, onlyReturns, buckets.AllPresent())

	dispatchSuccess := true
	if decision.ShouldReport {
		body := o.Composer.Compose(o.Cfg.Locale, o.serverName, buckets, o.Registry, o.cycleIndex)
		subject := substitute(o.activeTranslation().Subject, map[string]string{"$serverName": o.serverName})
		dispatchSuccess = o.Dispatcher.Dispatch(ctx, body, subject, o.cycleIndex, buckets)
		if o.Stats != nil {
			o.Stats.RecordDispatch(dispatchSuccess)
		}
	}
	o.Scheduler.Commit(now, decision, buckets.AllPresent(), dispatchSuccess)
	o.cycleIndex++
	if o.Stats != nil {
		o.Stats.RecordCycle()
		o.Stats.SetReminderCounter(o.Scheduler.ReminderCounter())
	}
	return nil
}

func contains(keys []string, key string) bool {
	i := sort.SearchStrings(keys, key)
	return i < len(keys) && keys[i] == key
}
