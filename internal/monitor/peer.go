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

import "time"

// PeerState is one of the five states a Peer can be in.
type PeerState int

// Peer states, see the transition table in step().
const (
	StateUnset PeerState = iota
	StatePresent
	StateJustReturned
	StateJustLost
	StateStillLost
)

func (s PeerState) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StatePresent:
		return "present"
	case StateJustReturned:
		return "just_returned"
	case StateJustLost:
		return "just_lost"
	case StateStillLost:
		return "still_lost"
	default:
		return "unknown"
	}
}

// Peer is one remote WireGuard participant, keyed by its base64 public key.
type Peer struct {
	Key           string
	State         PeerState
	LastHandshake time.Time
	// NeverSeen is true while the probe has never reported a nonzero
	// handshake for this peer. LastHandshake is then meaningless for
	// display and its age is computed against the process start time.
	NeverSeen bool
}

// referenceTime is the timestamp used to compute a peer's age: its last
// handshake, or the process start time if it was never seen.
func (p *Peer) referenceTime(processStart time.Time) time.Time {
	if p.NeverSeen {
		return processStart
	}
	return p.LastHandshake
}

// PeerRegistry is a keyed store of Peer records, owned exclusively by the
// Orchestrator. It is mutated by the Handshake Probe (timestamp upserts)
// and by the Orchestrator's stepping pass (state transitions).
type PeerRegistry struct {
	peers map[string]*Peer
}

// NewPeerRegistry returns an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[string]*Peer)}
}

// Upsert returns the Peer for key, creating an Unset record if absent.
func (r *PeerRegistry) Upsert(key string) *Peer {
	p, ok := r.peers[key]
	if !ok {
		p = &Peer{Key: key, State: StateUnset}
		r.peers[key] = p
	}
	return p
}

// Get returns the Peer for key, if any.
func (r *PeerRegistry) Get(key string) (*Peer, bool) {
	p, ok := r.peers[key]
	return p, ok
}

// All returns every tracked peer, including ones not in the configured peer
// set. Callers must not mutate the returned map.
func (r *PeerRegistry) All() map[string]*Peer {
	return r.peers
}
