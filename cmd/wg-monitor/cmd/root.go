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

// Package cmd implements the wg-monitor CLI surface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wg-monitor/wg-monitor/internal/monitor"
)

// version is set at build time via -ldflags, the same package-level var
// pattern the teacher's binaries use.
var version = "dev"

// RootCmd is the wg-monitor entrypoint.
var RootCmd = &cobra.Command{
	Use:   "wg-monitor",
	Short: "Phone-home connectivity monitor for a WireGuard mesh",
	RunE:  run,
}

var (
	verboseFlag          bool
	reexecFlag           bool
	ifaceFlag            string
	configFlag           string
	peerFileFlag         string
	urlFileFlag          string
	commandFlag          string
	bothFlag             bool
	caBundleFlag         string
	intervalFlag         int
	lostThresholdFlag    int
	reminderDelaysFlag   []int
	waitForInterfaceFlag bool
	progressFlag         bool
	languageFlag         string
	dryRunFlag           bool
	hostnameFlag         string
	commandTimeoutFlag   int
	monitoringPortFlag   int
	translationFileFlag  string
	versionFlag          bool
)

func init() {
	flags := RootCmd.Flags()
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")
	flags.StringVar(&configFlag, "config", "", "path to an optional YAML config file")
	flags.StringVar(&ifaceFlag, "interface", "", "WireGuard interface name")
	flags.StringVar(&peerFileFlag, "peer-file", "", "explicit path to the peer list file")
	flags.StringVar(&urlFileFlag, "url-file", "", "explicit path to the notification URL list file")
	flags.StringVar(&commandFlag, "command", "", "external notification command")
	flags.BoolVar(&bothFlag, "both", false, "dispatch via both the command and the URL list")
	flags.StringVar(&caBundleFlag, "ca-bundle", "", "path to a CA bundle overriding the system root pool")
	flags.IntVar(&intervalFlag, "interval", 0, "polling interval in seconds")
	flags.IntVar(&lostThresholdFlag, "lost-threshold", 0, "peer-timeout threshold in seconds")
	flags.IntSliceVar(&reminderDelaysFlag, "reminder-delays", nil, "five reminder delays in seconds")
	flags.BoolVar(&waitForInterfaceFlag, "wait-for-interface", true, "block at startup until the interface appears")
	flags.BoolVar(&progressFlag, "progress", false, "print a per-cycle progress table")
	flags.StringVar(&languageFlag, "language", "", "notification locale")
	flags.BoolVar(&dryRunFlag, "dry-run", false, "print the notification body instead of dispatching it")
	flags.StringVar(&hostnameFlag, "hostname", "", "override the derived server name")
	flags.IntVar(&commandTimeoutFlag, "command-timeout", 0, "external command timeout in seconds, 0 disables")
	flags.IntVar(&monitoringPortFlag, "monitoring-port", 0, "HTTP port for /metrics, /, /counters")
	flags.StringVar(&translationFileFlag, "translations", "", "path to the translation catalog file")
	flags.BoolVar(&reexecFlag, "reexec", false, "internal marker set when re-invoking under elevated privilege")
	flags.BoolVar(&versionFlag, "version", false, "print version and exit")
}

// Execute is the process entrypoint.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var fatal *monitor.FatalError
	for e := err; e != nil; {
		if fe, ok := e.(*monitor.FatalError); ok {
			fatal = fe
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if fatal != nil {
		return fatal.ExitCode
	}
	return monitor.ExitUnspecified
}

func configureLogging() {
	log.SetLevel(log.InfoLevel)
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

func run(_ *cobra.Command, _ []string) error {
	configureLogging()

	if versionFlag {
		fmt.Println(version)
		return nil
	}

	cfg, err := monitor.ReadConfig(configFlag)
	if err != nil {
		return &monitor.FatalError{ExitCode: monitor.ExitCLIParse, Err: err}
	}

	overrides := collectOverrides()
	overrides.Apply(cfg)

	if err := resolveFiles(cfg); err != nil {
		return err
	}

	translations, err := monitor.LoadTranslations(translationPath())
	if err != nil {
		return &monitor.FatalError{ExitCode: monitor.ExitMissingFiles, Err: err}
	}
	cfg.Translations = translations

	if _, ok := translations[cfg.Locale]; !ok {
		return &monitor.FatalError{ExitCode: monitor.ExitUnknownLanguage, Err: fmt.Errorf("unknown language %q", cfg.Locale)}
	}

	if err := cfg.Validate(); err != nil {
		return &monitor.FatalError{ExitCode: monitor.ExitCLIParse, Err: err}
	}

	runner := monitor.ExecRunner{}
	probe := monitor.NewProbe(cfg.Iface, runner)
	scheduler := monitor.NewReportScheduler(cfg.ReportSchedule)
	composer := monitor.NewBodyComposer(cfg.Translations)

	dispatchMode := cfg.DispatchMode
	if bothFlag {
		dispatchMode = monitor.DispatchBoth
	}
	dispatcher, err := monitor.NewDispatcher(dispatchMode, cfg.Command, cfg.URLs, cfg.CABundle, cfg.DryRun)
	if err != nil {
		return &monitor.FatalError{ExitCode: monitor.ExitGenericException, Err: err}
	}
	dispatcher.CommandTimeout = cfg.CommandTimeout

	stats, err := monitor.NewStats()
	if err != nil {
		log.Warningf("process stats unavailable: %v", err)
	}
	if cfg.MonitoringPort > 0 {
		jsonStats := monitor.NewJSONStats(stats)
		go jsonStats.Start(cfg.MonitoringPort, time.Minute)
	}

	var progress monitor.ProgressPrinter
	if cfg.Progress {
		progress = monitor.NewTableProgress()
	}

	orch := monitor.NewOrchestrator(cfg, probe, scheduler, composer, dispatcher, stats, progress)
	return orch.Run(context.Background())
}

func translationPath() string {
	if translationFileFlag != "" {
		return translationFileFlag
	}
	return "/etc/wg-monitor/translations.txt"
}

func collectOverrides() monitor.FlagOverrides {
	set := map[string]bool{}
	values := map[string]interface{}{}
	flags := RootCmd.Flags()

	register := func(name string, val interface{}) {
		if flags.Changed(name) {
			set[name] = true
			values[name] = val
		}
	}
	register("interface", ifaceFlag)
	register("peer-file", peerFileFlag)
	register("url-file", urlFileFlag)
	register("ca-bundle", caBundleFlag)
	register("command", commandFlag)
	register("both", bothFlag)
	register("interval", intervalFlag)
	register("lost-threshold", lostThresholdFlag)
	register("wait-for-interface", waitForInterfaceFlag)
	register("progress", progressFlag)
	register("language", languageFlag)
	register("dry-run", dryRunFlag)
	register("hostname", hostnameFlag)
	register("command-timeout", commandTimeoutFlag)
	register("monitoring-port", monitoringPortFlag)
	if flags.Changed("reminder-delays") {
		set["reminder-delays"] = true
		values["reminder-delays"] = reminderDelaysFlag
	}

	return monitor.FlagOverrides{Set: set, Values: values}
}

// resolveFiles runs the file-discovery search order for the peer list, URL
// list, and CA bundle, and populates cfg.PeerSet / cfg.URLs / cfg.CABundle.
func resolveFiles(cfg *monitor.Context) error {
	peerPath, err := monitor.Locate(cfg.PeerFile, cfg.Iface, "peers.list", ".list")
	if err != nil {
		return &monitor.FatalError{ExitCode: monitor.ExitMissingFiles, Err: fmt.Errorf("peer list: %w", err)}
	}
	peerList, err := monitor.ParsePeerList(peerPath)
	if err != nil {
		return wrapParseErr(err)
	}
	if len(peerList.Invalid) > 0 {
		log.Warningf("%d invalid peer-list entries in %s", len(peerList.Invalid), peerPath)
	}
	cfg.PeerSet = monitor.PeerSetFromList(peerList)

	if cfg.DispatchMode != monitor.DispatchCommandOnly {
		urlPath, err := monitor.Locate(cfg.URLFile, cfg.Iface, "batsign.url", ".url")
		if err != nil {
			return &monitor.FatalError{ExitCode: monitor.ExitMissingFiles, Err: fmt.Errorf("url list: %w", err)}
		}
		urlList, err := monitor.ParseURLList(urlPath)
		if err != nil {
			return wrapParseErr(err)
		}
		if len(urlList.Invalid) > 0 {
			log.Warningf("%d invalid url-list entries in %s", len(urlList.Invalid), urlPath)
		}
		cfg.URLs = urlList.Valid
	}

	// The CA bundle is optional: an empty cfg.CABundle tells NewDispatcher
	// to fall back to the system root pool, so a missing file here is not
	// fatal, unlike the mandatory peer and URL lists above.
	if caPath, err := monitor.Locate(cfg.CABundle, cfg.Iface, "ca-bundle.pem", ".ca"); err == nil {
		cfg.CABundle = caPath
	}
	return nil
}

func wrapParseErr(err error) error {
	var fatal *monitor.FatalError
	if fe, ok := err.(*monitor.FatalError); ok {
		fatal = fe
		return fatal
	}
	return &monitor.FatalError{ExitCode: monitor.ExitMissingFiles, Err: err}
}
