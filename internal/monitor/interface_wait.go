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
	"time"

	"github.com/jsimonetti/rtnetlink/rtnl"
	log "github.com/sirupsen/logrus"
)

// interfaceRetryInterval is how often the Interface-Wait Loop reinvokes the
// probe while the device is absent, per spec §4.4.
const interfaceRetryInterval = 10 * time.Second

// WaitForInterface blocks until probeOnce succeeds (or fails with a
// non-interface error), reinvoking it every 10 seconds. Between attempts it
// consults netlink for link presence so the external tool isn't re-spawned
// while the interface is known to still be absent; if the netlink query
// itself fails, it falls back to unconditional re-invocation.
func WaitForInterface(ctx context.Context, iface string, probeOnce func(context.Context) error) error {
	ticker := time.NewTicker(interfaceRetryInterval)
	defer ticker.Stop()
	for {
		if linkExists(iface) {
			err := probeOnce(ctx)
			if err == nil {
				return nil
			}
			pe, ok := AsProbeError(err)
			if !ok || pe.Kind != ErrNoSuchInterface {
				return err
			}
			log.Debugf("interface %s still reports absent: %v", iface, err)
		} else {
			log.Debugf("interface %s not present in netlink, not re-probing yet", iface)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// linkExists reports whether iface currently exists, using a netlink query.
// Returns true (i.e. "go ahead and probe") if the query itself cannot be
// performed, so a permission-denied netlink socket never wedges the loop.
func linkExists(iface string) bool {
	conn, err := rtnl.Dial(nil)
	if err != nil {
		return true
	}
	defer conn.Close()
	_, err = conn.LinkByName(iface)
	return err == nil
}
