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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildRegistry(states map[string]PeerState) *PeerRegistry {
	reg := NewPeerRegistry()
	for key, state := range states {
		p := reg.Upsert(key)
		p.State = state
	}
	return reg
}

func TestSortPeersPartitionsAndSorts(t *testing.T) {
	reg := buildRegistry(map[string]PeerState{
		"C+1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa=": StatePresent,
		"A+1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa=": StatePresent,
		"B/2aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa=": StateJustLost,
		"D+3aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa=": StateStillLost,
		"E+2aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa=": StateJustReturned,
	})
	peerSet := map[string]bool{}
	for k := range reg.All() {
		peerSet[k] = true
	}

	buckets := SortPeers(reg, peerSet)
	require.Len(t, buckets.Present, 2)
	require.True(t, sort.StringsAreSorted(buckets.Present))
	require.Len(t, buckets.JustLost, 1)
	require.Len(t, buckets.StillLost, 1)
	require.Len(t, buckets.JustReturned, 1)
}

func TestSortPeersSkipsPeersNotInPeerSet(t *testing.T) {
	reg := buildRegistry(map[string]PeerState{
		"known0000000000000000000000000000000000000=":   StatePresent,
		"unknown00000000000000000000000000000000000=": StateJustLost,
	})
	buckets := SortPeers(reg, map[string]bool{"known0000000000000000000000000000000000000=": true})
	require.Equal(t, []string{"known0000000000000000000000000000000000000="}, buckets.Present)
	require.Empty(t, buckets.JustLost)
}

func TestAllPresent(t *testing.T) {
	require.True(t, (&SortedBuckets{}).AllPresent())
	require.False(t, (&SortedBuckets{JustLost: []string{"x"}}).AllPresent())
	require.False(t, (&SortedBuckets{StillLost: []string{"x"}}).AllPresent())
	require.True(t, (&SortedBuckets{JustReturned: []string{"x"}}).AllPresent())
}

func TestSortPeersIdempotent(t *testing.T) {
	reg := buildRegistry(map[string]PeerState{
		"peerA0000000000000000000000000000000000000=": StatePresent,
		"peerB0000000000000000000000000000000000000=": StateJustLost,
	})
	peerSet := map[string]bool{"peerA0000000000000000000000000000000000000=": true, "peerB0000000000000000000000000000000000000=": true}
	first := SortPeers(reg, peerSet)
	second := SortPeers(reg, peerSet)
	require.Equal(t, first, second)
}
