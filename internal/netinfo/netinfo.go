// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package netinfo logs a one-shot diagnostic snapshot of the host's
// network interfaces when net_allowed is in effect, so an operator
// reading the log can see what a sandboxed program calling socket(2) is
// actually able to reach.
package netinfo

import (
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// LogInterfaces enumerates the host's network links via netlink and logs
// one line per interface at info level. A failure to enumerate is logged
// and swallowed -- this is diagnostic only, never a reason to refuse to
// start the sandbox.
func LogInterfaces(log *logrus.Logger) {
	links, err := netlink.LinkList()
	if err != nil {
		log.WithField("channel", "policy").Warnf("netinfo: list links: %v", err)
		return
	}
	for _, link := range links {
		attrs := link.Attrs()
		var addrs []netlink.Addr
		if a, err := netlink.AddrList(link, netlink.FAMILY_ALL); err == nil {
			addrs = a
		}
		log.WithFields(logrus.Fields{
			"channel":   "policy",
			"iface":     attrs.Name,
			"index":     attrs.Index,
			"oper":      attrs.OperState.String(),
			"addrcount": len(addrs),
		}).Info("net_allowed: host interface")
	}
}
