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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// JSONStats serves the current snapshot and cumulative counters as JSON,
// mirroring ptp/sptp/client/json_stats.go.
type JSONStats struct {
	*Stats
}

// NewJSONStats wraps a Stats tracker with the JSON HTTP surface.
func NewJSONStats(s *Stats) *JSONStats {
	return &JSONStats{Stats: s}
}

// Start runs the sysstats collection loop and the HTTP server. It blocks
// until the HTTP server exits and is meant to be launched on its own
// goroutine.
func (s *JSONStats) Start(monitoringPort int, interval time.Duration) {
	go func() {
		for range time.Tick(interval) {
			s.CollectSysStats()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/counters", s.handleCounters)
	RegisterPrometheusHandlers(mux, s.Stats)

	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("starting monitoring http server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("monitoring http server exited: %v", err)
	}
}

func (s *JSONStats) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetCounters())
}

func (s *JSONStats) handleCounters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetCounters())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("failed to write monitoring response: %v", err)
	}
}
