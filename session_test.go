// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/tai64n"
)

func newStoreTestHandshake(p *peer, r role, id byte) *handshake {
	hs := &handshake{
		peer: p,
		role: r,
	}

	if r == initiator {
		hs.sidi = sid{id}
	} else {
		hs.sidr = sid{id}
	}

	return hs
}

func TestSessionStore(t *testing.T) {
	pa := &peer{pid: PeerID{1}}
	pb := &peer{pid: PeerID{2}}

	t.Run("Overwrite", func(t *testing.T) {
		require := require.New(t)

		s := newSessionStore()

		hs1 := newStoreTestHandshake(pa, initiator, 1)
		hs2 := newStoreTestHandshake(pa, initiator, 2)

		require.Nil(s.put(hs1))
		require.Equal(hs1, s.put(hs2))
		require.Equal(1, s.len())

		_, ok := s.get(sid{1})
		require.False(ok)

		hs, ok := s.get(sid{2})
		require.True(ok)
		require.Equal(hs2, hs)
	})

	t.Run("SlotsAreIndependent", func(t *testing.T) {
		require := require.New(t)

		s := newSessionStore()

		require.Nil(s.put(newStoreTestHandshake(pa, initiator, 1)))
		require.Nil(s.put(newStoreTestHandshake(pa, responder, 2)))
		require.Nil(s.put(newStoreTestHandshake(pb, initiator, 3)))
		require.Equal(3, s.len())
		require.Len(s.all(), 3)
	})

	t.Run("RemoveOnlyCurrent", func(t *testing.T) {
		require := require.New(t)

		s := newSessionStore()

		hs1 := newStoreTestHandshake(pa, responder, 1)
		hs2 := newStoreTestHandshake(pa, responder, 2)

		s.put(hs1)
		s.put(hs2)

		// An expiring replaced handshake must not remove its successor
		require.False(s.remove(hs1))
		require.Equal(1, s.len())

		require.True(s.remove(hs2))
		require.Equal(0, s.len())
		require.False(s.remove(hs2))
	})

	t.Run("NewSessionID", func(t *testing.T) {
		require := require.New(t)

		s := newSessionStore()
		s.put(newStoreTestHandshake(pa, initiator, 1))

		// The first candidate collides with the stored session
		rd := io.MultiReader(
			bytes.NewReader([]byte{1, 0, 0, 0}),
			bytes.NewReader([]byte{2, 0, 0, 0}))

		id, err := s.newSessionID(rd)
		require.NoError(err)
		require.Equal(sid{2}, id)

		_, err = s.newSessionID(bytes.NewReader(nil))
		require.Error(err)
	})
}

func TestFreshnessLedger(t *testing.T) {
	require := require.New(t)

	l := newFreshnessLedger()
	clk := monotonicClock()

	pa := PeerID{1}
	pb := PeerID{2}

	ts1 := clk()
	ts2 := clk()

	require.True(l.accept(pa, ts1))
	require.False(l.accept(pa, ts1))
	require.True(l.accept(pa, ts2))
	require.False(l.accept(pa, ts1))

	// Peers are tracked independently
	require.True(l.accept(pb, ts1))
}

func TestFreshnessLedgerConcurrent(t *testing.T) {
	require := require.New(t)

	l := newFreshnessLedger()
	ts := tai64n.Now()

	const n = 64

	var (
		wg       sync.WaitGroup
		accepted int
		lock     sync.Mutex
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if l.accept(PeerID{}, ts) {
				lock.Lock()
				accepted++
				lock.Unlock()
			}
		}()
	}

	wg.Wait()

	require.Equal(1, accepted)
}
