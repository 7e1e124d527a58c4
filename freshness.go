// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"sync"

	"golang.zx2c4.com/wireguard/tai64n"
)

// freshnessLedger remembers the newest timestamp accepted from each initiator.
type freshnessLedger struct {
	last     map[PeerID]tai64n.Timestamp
	lastLock sync.Mutex
}

func newFreshnessLedger() *freshnessLedger {
	return &freshnessLedger{
		last: map[PeerID]tai64n.Timestamp{},
	}
}

// fresh reports whether ts is strictly newer than any timestamp accepted
// from the peer so far. It does not record ts.
func (l *freshnessLedger) fresh(p PeerID, ts tai64n.Timestamp) bool {
	l.lastLock.Lock()
	defer l.lastLock.Unlock()

	last, ok := l.last[p]

	return !ok || ts.After(last)
}

// accept records ts for the peer if it is strictly newer than any timestamp
// accepted before. Comparison and update are a single atomic step.
func (l *freshnessLedger) accept(p PeerID, ts tai64n.Timestamp) bool {
	l.lastLock.Lock()
	defer l.lastLock.Unlock()

	if last, ok := l.last[p]; ok && !ts.After(last) {
		return false
	}

	l.last[p] = ts

	return true
}
