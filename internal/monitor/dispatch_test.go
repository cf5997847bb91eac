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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, mode DispatchMode, urls []string) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(mode, "", urls, "", false)
	require.NoError(t, err)
	return d
}

func TestAttemptSuccessOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{srv.URL})
	ok, terminal := d.attempt(context.Background(), srv.URL, "body")
	require.True(t, ok)
	require.False(t, terminal)
}

func TestAttempt404IsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{srv.URL})
	ok, terminal := d.attempt(context.Background(), srv.URL, "body")
	require.False(t, ok)
	require.True(t, terminal)
}

func TestAttempt500IsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{srv.URL})
	ok, terminal := d.attempt(context.Background(), srv.URL, "body")
	require.False(t, ok)
	require.False(t, terminal)
}

func TestPostOneRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{srv.URL})
	ok := d.postOne(context.Background(), srv.URL, "body")
	require.True(t, ok)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPostOneStopsImmediatelyOn404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{srv.URL})
	ok := d.postOne(context.Background(), srv.URL, "body")
	require.False(t, ok)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 404 must not be retried")
}

func TestPostAllRequiresEveryURLToSucceed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{good.URL, bad.URL})
	ok := d.postAll(context.Background(), "body", "subject")
	require.False(t, ok)
}

func TestDispatchDryRunAlwaysSucceedsWithoutNetworkCalls(t *testing.T) {
	d := newTestDispatcher(t, DispatchURLOnly, []string{"http://127.0.0.1:0/unreachable"})
	d.DryRun = true
	ok := d.Dispatch(context.Background(), "body", "subject", 0, &SortedBuckets{})
	require.True(t, ok)
}

func TestDispatchURLOnlyIgnoresCommandResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, DispatchURLOnly, []string{srv.URL})
	d.Command = "/nonexistent/command/should/not/run"
	ok := d.Dispatch(context.Background(), "body", "subject", 1, &SortedBuckets{})
	require.True(t, ok)
}
