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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ProbeErrorKind classifies a Handshake Probe failure, see spec §4.3.
type ProbeErrorKind int

// Probe error classes, distinguished by exit code and stderr/stdout text.
// The exact substrings matched are part of the stable contract with the
// wg tool.
const (
	ErrGeneric ProbeErrorKind = iota
	ErrNeedElevation
	ErrNoSuchInterface
	ErrNetworkFailure
	ErrToolMissing
)

const (
	textNeedElevation   = "Operation not permitted"
	textNoSuchInterface = "No such device"
	textNetworkFailure  = "Address family not supported by protocol"
)

// ProbeError is the tagged variant produced by the Handshake Probe. Callers
// pattern-match on Kind.
type ProbeError struct {
	Kind  ProbeErrorKind
	Iface string
	Err   error
}

func (e *ProbeError) Error() string {
	switch e.Kind {
	case ErrNeedElevation:
		return "wg: operation not permitted, needs elevated privilege"
	case ErrNoSuchInterface:
		return fmt.Sprintf("wg: no such interface %q", e.Iface)
	case ErrNetworkFailure:
		return "wg: network failure talking to the kernel"
	case ErrToolMissing:
		return "wg: tool not found"
	default:
		return fmt.Sprintf("wg: %v", e.Err)
	}
}

// Unwrap exposes the underlying exec error, if any.
func (e *ProbeError) Unwrap() error { return e.Err }

// AsProbeError is a small errors.As helper so callers don't need to import
// the concrete type directly.
func AsProbeError(err error) (*ProbeError, bool) {
	var pe *ProbeError
	ok := errors.As(err, &pe)
	return pe, ok
}

// CommandRunner abstracts process execution so the Probe can be tested
// without shelling out to a real wg binary.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Probe invokes the external VPN control tool and parses its output into a
// PeerRegistry.
type Probe struct {
	WGPath string
	Iface  string
	Runner CommandRunner
}

// NewProbe creates a Probe for iface, honoring the WG environment variable
// override documented in spec §6.
func NewProbe(iface string, runner CommandRunner) *Probe {
	wg := os.Getenv("WG")
	if wg == "" {
		wg = "/usr/bin/wg"
	}
	return &Probe{WGPath: wg, Iface: iface, Runner: runner}
}

// PublicKey returns this node's own public key, used to derive ServerName.
func (p *Probe) PublicKey(ctx context.Context) (string, error) {
	stdout, stderr, err := p.Runner.Run(ctx, p.WGPath, "show", p.Iface, "public-key")
	if err != nil {
		return "", classify(p.Iface, stdout, stderr, err)
	}
	return strings.TrimSpace(stdout), nil
}

// LatestHandshakes invokes "wg show <iface> latest-handshakes" and upserts
// the result into reg. It never partially mutates the registry on
// structural failure of the command itself (classify returns before any
// row is parsed); individual malformed rows are simply skipped.
func (p *Probe) LatestHandshakes(ctx context.Context, reg *PeerRegistry) error {
	stdout, stderr, err := p.Runner.Run(ctx, p.WGPath, "show", p.Iface, "latest-handshakes")
	if err != nil {
		return classify(p.Iface, stdout, stderr, err)
	}
	parseHandshakes(stdout, reg)
	return nil
}

// parseHandshakes applies the row parsing rules in spec §4.3. Malformed
// rows are skipped, not fatal.
func parseHandshakes(out string, reg *PeerRegistry) {
	for _, line := range strings.Split(out, "\n") {
		idx := strings.IndexByte(line, '\t')
		if idx < 0 {
			continue
		}
		key := line[:idx]
		rest := line[idx+1:]
		// trailing \r or extra tabs/columns are tolerated; only the first
		// field after the key matters.
		if j := strings.IndexByte(rest, '\t'); j >= 0 {
			rest = rest[:j]
		}
		rest = strings.TrimRight(rest, "\r\n")
		if rest == "" {
			continue
		}
		p := reg.Upsert(key)
		if rest[0] == '0' {
			p.NeverSeen = true
			continue
		}
		secs, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			continue
		}
		p.LastHandshake = time.Unix(secs, 0)
		p.NeverSeen = false
	}
}

// classify turns a failed invocation into a tagged ProbeError.
func classify(iface, stdout, stderr string, execErr error) error {
	var pathErr *exec.Error
	if errors.As(execErr, &pathErr) {
		return &ProbeError{Kind: ErrToolMissing, Iface: iface, Err: execErr}
	}
	combined := stdout + "\n" + stderr
	switch {
	case strings.Contains(combined, textNeedElevation):
		return &ProbeError{Kind: ErrNeedElevation, Iface: iface, Err: execErr}
	case strings.Contains(combined, textNoSuchInterface):
		return &ProbeError{Kind: ErrNoSuchInterface, Iface: iface, Err: execErr}
	case strings.Contains(combined, textNetworkFailure):
		return &ProbeError{Kind: ErrNetworkFailure, Iface: iface, Err: execErr}
	default:
		return &ProbeError{Kind: ErrGeneric, Iface: iface, Err: errors.Wrapf(execErr, "wg show %s failed: %s", iface, strings.TrimSpace(stderr))}
	}
}
