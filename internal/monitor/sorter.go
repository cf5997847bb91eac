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

import "sort"

// SortedBuckets is a snapshot partition of a PeerRegistry: one ascending,
// by-key sequence per non-Unset state. It is recomputed every cycle.
type SortedBuckets struct {
	Present      []string
	JustReturned []string
	JustLost     []string
	StillLost    []string
}

// AllPresent reports whether no peer is currently lost, irrespective of
// whether any peer just returned.
func (b *SortedBuckets) AllPresent() bool {
	return len(b.JustLost) == 0 && len(b.StillLost) == 0
}

// SortPeers partitions the configured peers in reg into four lexicographically
// sorted buckets by state. Peers not present in peerSet (the administrator's
// declared list) are excluded, matching the Orchestrator's stepping pass.
func SortPeers(reg *PeerRegistry, peerSet map[string]bool) *SortedBuckets {
	b := &SortedBuckets{}
	for key, p := range reg.All() {
		if !peerSet[key] {
			continue
		}
		switch p.State {
		case StatePresent:
			b.Present = append(b.Present, key)
		case StateJustReturned:
			b.JustReturned = append(b.JustReturned, key)
		case StateJustLost:
			b.JustLost = append(b.JustLost, key)
		case StateStillLost:
			b.StillLost = append(b.StillLost, key)
		}
	}
	sort.Strings(b.Present)
	sort.Strings(b.JustReturned)
	sort.Strings(b.JustLost)
	sort.Strings(b.StillLost)
	return b
}
