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

// step is the per-peer transition function. JustLost/JustReturned are
// one-cycle edge labels; StillLost/Present are steady states. An Unset peer
// that already exceeds the threshold at first observation goes straight to
// StillLost and counts as a change, so the first cycle can still report.
func step(state PeerState, timedOut bool) (next PeerState, changed bool) {
	switch state {
	case StateUnset:
		if timedOut {
			return StateStillLost, true
		}
		return StatePresent, false
	case StatePresent:
		if timedOut {
			return StateJustLost, true
		}
		return StatePresent, false
	case StateJustReturned:
		if timedOut {
			return StateJustLost, true
		}
		return StatePresent, false
	case StateJustLost:
		if timedOut {
			return StateStillLost, false
		}
		return StateJustReturned, true
	case StateStillLost:
		if timedOut {
			return StateStillLost, false
		}
		return StateJustReturned, true
	default:
		if timedOut {
			return StateStillLost, true
		}
		return StatePresent, false
	}
}
