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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Dispatch tuning constants, see spec §4.8 and §8 "Boundary behaviors".
const (
	maxPostAttempts = 10
	postRetryDelay  = 5 * time.Second
	postTimeout     = 10 * time.Second
)

// DispatchMode selects which channel(s) the Dispatcher uses.
type DispatchMode int

// Dispatch modes, see spec §4.8.
const (
	DispatchURLOnly DispatchMode = iota
	DispatchCommandOnly
	DispatchBoth
)

// Dispatcher runs the external notification command and/or posts the
// rendered body to one or more URLs, with per-URL retry.
type Dispatcher struct {
	Mode           DispatchMode
	Command        string
	URLs           []string
	DryRun         bool
	Client         *http.Client
	CommandTimeout time.Duration // 0 disables, see spec §5 "Cancellation/timeout"
}

// NewDispatcher builds a Dispatcher. caBundle, if non-empty, overrides the
// system root CA pool for the HTTP client used to POST notifications.
func NewDispatcher(mode DispatchMode, command string, urls []string, caBundle string, dryRun bool) (*Dispatcher, error) {
	transport := &http.Transport{
		DisableKeepAlives: true,
	}
	if caBundle != "" {
		pem, err := os.ReadFile(caBundle)
		if err != nil {
			return nil, errors.Wrap(err, "reading CA bundle")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caBundle)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	return &Dispatcher{
		Mode:    mode,
		Command: command,
		URLs:    urls,
		DryRun:  dryRun,
		Client: &http.Client{
			Transport: transport,
			Timeout:   postTimeout,
		},
	}, nil
}

// Dispatch sends body over the configured channel(s) and reports overall
// success per the behavior matrix in spec §4.8.
func (d *Dispatcher) Dispatch(ctx context.Context, body, subject string, cycleIndex int, buckets *SortedBuckets) bool {
	if d.DryRun {
		fmt.Println(body)
		return true
	}

	var cmdOK, urlOK = true, true
	if d.Mode == DispatchCommandOnly || d.Mode == DispatchBoth {
		cmdOK = d.runCommand(ctx, body, cycleIndex, buckets)
	}
	if d.Mode == DispatchURLOnly || d.Mode == DispatchBoth {
		urlOK = d.postAll(ctx, body, subject)
	}

	switch d.Mode {
	case DispatchCommandOnly:
		return cmdOK
	case DispatchURLOnly:
		return urlOK
	default:
		return cmdOK && urlOK
	}
}

// runCommand invokes the external notification command with the six
// positional arguments described in spec §6.
func (d *Dispatcher) runCommand(ctx context.Context, body string, cycleIndex int, buckets *SortedBuckets) bool {
	args := []string{
		body,
		strconv.Itoa(cycleIndex),
		strings.Join(buckets.JustLost, " "),
		strings.Join(buckets.JustReturned, " "),
		strings.Join(buckets.StillLost, " "),
		strings.Join(buckets.Present, " "),
	}
	if d.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.CommandTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, d.Command, args...)
	if err := cmd.Run(); err != nil {
		log.Warning(errors.Wrap(err, "running notification command"))
		return false
	}
	return true
}

// postAll POSTs body (prefixed with a Subject line) to every configured
// URL. Success requires every URL to eventually succeed.
func (d *Dispatcher) postAll(ctx context.Context, body, subject string) bool {
	full := "Subject: " + subject + "\n" + body
	ok := true
	for _, url := range d.URLs {
		if !d.postOne(ctx, url, full) {
			ok = false
		}
	}
	return ok
}

// postOne retries up to maxPostAttempts times with a fixed delay between
// attempts, except a 404 is a definitive per-URL failure with no retry.
func (d *Dispatcher) postOne(ctx context.Context, url, body string) bool {
	for attempt := 1; attempt <= maxPostAttempts; attempt++ {
		ok, terminal := d.attempt(ctx, url, body)
		if ok {
			return true
		}
		if terminal {
			return false
		}
		if attempt == maxPostAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(postRetryDelay):
		}
	}
	log.Warningf("giving up on %s after %d attempts", url, maxPostAttempts)
	return false
}

func (d *Dispatcher) attempt(ctx context.Context, url, body string) (success, terminal bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		log.Warningf("building request to %s: %v", url, err)
		return false, false
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Close = true

	resp, err := d.Client.Do(req)
	if err != nil {
		log.Warningf("posting to %s: %v", url, err)
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Warningf("url %s returned 404, treating as misconfigured, not retrying", url)
		return false, true
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, false
	}
	log.Warningf("url %s returned status %d", url, resp.StatusCode)
	return false, false
}
