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
	"strconv"
	"strings"
	"time"
)

// timestampLayout is the fixed display format for $timestamp substitutions.
const timestampLayout = "2006-01-02 15:04"

// peerDisplay is the rendered name and optional phase of a peer, derived
// from its public key prefix per spec §4.7.
type peerDisplay struct {
	Name  string
	Phase int
}

// derivePeerDisplay implements the peer-display-name derivation rule. It is
// deterministic and idempotent: re-deriving from the same key always
// produces the same result.
func derivePeerDisplay(key string) peerDisplay {
	prefix := key
	if len(prefix) > 7 {
		prefix = prefix[:7]
	}
	if idx := strings.IndexByte(prefix, '+'); idx >= 0 {
		name := capitalize(prefix[:idx])
		phase := 0
		if idx+1 < len(prefix) {
			c := prefix[idx+1]
			if c >= '1' && c <= '3' {
				phase = int(c - '0')
			}
		}
		return peerDisplay{Name: name, Phase: phase}
	}
	if idx := strings.IndexByte(prefix, '/'); idx >= 0 {
		return peerDisplay{Name: capitalize(prefix[:idx])}
	}
	return peerDisplay{Name: capitalize(prefix)}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// renderedName applies phaseDescription expansion on top of the derived
// display name, when the key carries a phase.
func renderedName(disp peerDisplay, tr *Translation) string {
	if disp.Phase <= 0 {
		return disp.Name
	}
	return substitute(tr.PhaseDescription, map[string]string{
		"$phaseName":   disp.Name,
		"$phaseNumber": strconv.Itoa(disp.Phase),
	})
}

// substitute replaces only the tokens present in vals, leaving any other
// literal "$xyz" text in tmpl untouched — the composer never invents
// tokens a translation string doesn't reference.
func substitute(tmpl string, vals map[string]string) string {
	var pairs []string
	for k, v := range vals {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// BodyComposer renders the localized, multi-section notification body.
type BodyComposer struct {
	Translations map[string]*Translation
}

// NewBodyComposer returns a composer backed by the given (already loaded,
// immutable) catalog.
func NewBodyComposer(catalog map[string]*Translation) *BodyComposer {
	return &BodyComposer{Translations: catalog}
}

type bucketSection struct {
	keys   []string
	header string
	isBack bool // true selects "back" phrasing, false selects "lastSeen"
}

// Compose renders the body lines for one cycle and joins them with '\n'.
func (c *BodyComposer) Compose(locale string, serverName string, buckets *SortedBuckets, reg *PeerRegistry, cycleIndex int) string {
	tr := c.Translations[locale]
	if tr == nil {
		tr = &Translation{}
	}

	if cycleIndex == 0 {
		return substitute(tr.PowerRestored, map[string]string{"$serverName": serverName})
	}

	var lines []string
	rendered := false

	sections := []bucketSection{
		{buckets.JustLost, tr.JustLostContactWith, false},
		{buckets.JustReturned, tr.JustRegainedContactWith, true},
		{buckets.StillLost, tr.StillNoContactWith, false},
	}
	for _, sec := range sections {
		if len(sec.keys) == 0 {
			continue
		}
		if rendered {
			lines = append(lines, "")
		}
		lines = append(lines, c.renderSection(tr, sec))
		rendered = true
	}

	if buckets.AllPresent() {
		if rendered {
			lines = append(lines, "", tr.NowHasContactWithAll)
		} else {
			lines = append(lines, tr.NowHasContactWithAll)
		}
	}

	return strings.Join(lines, "\n")
}

func (c *BodyComposer) renderSection(tr *Translation, sec bucketSection) string {
	noun := tr.PeerSingular
	if len(sec.keys) != 1 {
		if tr.PeerPlural != "" {
			noun = tr.PeerPlural
		}
	}
	names := make([]string, 0, len(sec.keys))
	var rows []string
	for _, key := range sec.keys {
		disp := derivePeerDisplay(key)
		name := renderedName(disp, tr)
		names = append(names, disp.Name)

		p, _ := reg.Get(key)
		var phrase string
		if p != nil && p.NeverSeen {
			phrase = tr.NotSeenSinceRestart
		} else {
			ts := ""
			if p != nil {
				ts = p.LastHandshake.Format(timestampLayout)
			}
			tmpl := tr.LastSeen
			if sec.isBack {
				tmpl = tr.Back
			}
			phrase = substitute(tmpl, map[string]string{"$timestamp": ts})
		}
		rows = append(rows, fmt.Sprintf("    %s, %s", name, phrase))
	}

	header := substitute(sec.header, map[string]string{
		"$numPeers": strconv.Itoa(len(sec.keys)),
		"$peerNoun": noun,
		"$peerList": strings.Join(names, ", "),
	})
	return strings.Join(append([]string{header}, rows...), "\n")
}
