// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/tai64n"
)

// exchange performs a complete handshake between alice and bob.
func exchange(t *testing.T, alice, bob *identity) (hsI, hsR *handshake) {
	require := require.New(t)

	hsI = newTestInitiator(alice, bob)
	hsR = newHandshake(bob, responder)

	m1, err := hsI.sendInit()
	require.NoError(err)
	require.Equal(stateAwaitingResponse, hsI.state)

	m2, err := hsR.resp(m1)
	require.NoError(err)
	require.Equal(stateKeyUnconfirmed, hsR.state)
	require.Equal(alice.pidm, hsR.peer.pid)

	m3, err := hsI.confirm(m2)
	require.NoError(err)
	require.Equal(stateTransport, hsI.state)

	m4, err := hsR.complete(m3)
	require.NoError(err)
	require.Equal(stateTransport, hsR.state)

	err = hsI.handleComplete(m4)
	require.NoError(err)

	return hsI, hsR
}

func TestHandshake(t *testing.T) {
	for _, tc := range []struct {
		name string
		psk  bool
	}{
		{"WithoutPSK", false},
		{"WithPSK", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)

			var psk Key
			if tc.psk {
				var err error
				psk, err = GeneratePresharedKey()
				require.NoError(err)
			}

			alice, bob := newTestIdentities(t, psk)

			hsI, hsR := exchange(t, alice, bob)

			require.Equal(hsI.osk, hsR.osk)
			require.Equal(hsI.txki, hsR.txki)
			require.Equal(hsI.txkr, hsR.txkr)
			require.NotEqual(key{}, hsI.osk)
			require.NotEqual(hsI.txki, hsI.txkr)

			// Ephemeral state is gone
			require.Equal(chain{}, hsI.chain)
			require.Equal(chain{}, hsR.chain)
			require.Nil(hsI.eski)
			require.Nil(hsI.epki)
			require.Nil(hsR.epki)
		})
	}
}

func TestHandshakePSKMismatch(t *testing.T) {
	require := require.New(t)

	psk, err := GeneratePresharedKey()
	require.NoError(err)

	alice, bob := newTestIdentities(t, psk)

	// Bob has no pre-shared key configured for Alice
	addTestPeer(t, bob, alice.spkm, Key{})

	hsI := newTestInitiator(alice, bob)
	hsR := newHandshake(bob, responder)

	m1, err := hsI.sendInit()
	require.NoError(err)

	_, err = hsR.resp(m1)
	require.ErrorIs(err, ErrAuthentication)
}

func TestHandshakeUnknownPeer(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	delete(bob.peers, alice.pidm)

	hsI := newTestInitiator(alice, bob)
	hsR := newHandshake(bob, responder)

	m1, err := hsI.sendInit()
	require.NoError(err)

	_, err = hsR.resp(m1)
	require.ErrorIs(err, ErrPeerNotFound)
}

func TestHandshakeKeyUniqueness(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	keys := map[key]struct{}{}

	for i := 0; i < 4; i++ {
		hsI, hsR := exchange(t, alice, bob)
		require.Equal(hsI.osk, hsR.osk)

		_, seen := keys[hsI.osk]
		require.False(seen, "Key of exchange %d was seen before", i)

		keys[hsI.osk] = struct{}{}
	}
}

func TestHandshakeTamperInit(t *testing.T) {
	fields := map[string]int{
		"sidi":  0,
		"sctr":  sidSize,
		"epki":  sidSize + sctSize,
		"astat": sidSize + sctSize + epkSize,
		"ats":   sidSize + sctSize + epkSize + astatSize,
	}

	alice, bob := newTestIdentities(t, Key{})

	for name, o := range fields {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			hsI := newTestInitiator(alice, bob)
			hsR := newHandshake(bob, responder)

			m1, err := hsI.sendInit()
			require.NoError(err)

			_, err = hsR.resp(flipBit(t, m1, o+1))
			require.ErrorIs(err, ErrAuthentication)
			require.Nil(hsR.peer)

			// The untampered message is still accepted
			_, err = newHandshake(bob, responder).resp(m1)
			require.NoError(err)
		})
	}
}

func TestHandshakeTamperResp(t *testing.T) {
	fields := map[string]int{
		"sidi":  0,
		"sidr":  sidSize,
		"scti":  2 * sidSize,
		"ecti":  2*sidSize + sctSize,
		"aempt": 2*sidSize + sctSize + ectSize,
	}

	alice, bob := newTestIdentities(t, Key{})

	for name, o := range fields {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			hsI := newTestInitiator(alice, bob)
			hsR := newHandshake(bob, responder)

			m1, err := hsI.sendInit()
			require.NoError(err)

			m2, err := hsR.resp(m1)
			require.NoError(err)

			_, err = hsI.confirm(flipBit(t, m2, o+1))
			require.ErrorIs(err, ErrAuthentication)
			require.Equal(stateAwaitingResponse, hsI.state)

			// A forged message leaves the handshake intact
			m3, err := hsI.confirm(m2)
			require.NoError(err)

			_, err = hsR.complete(m3)
			require.NoError(err)
			require.Equal(hsI.osk, hsR.osk)
		})
	}
}

func TestHandshakeTamperConfirm(t *testing.T) {
	fields := map[string]int{
		"sidi":  0,
		"aconf": 2 * sidSize,
	}

	alice, bob := newTestIdentities(t, Key{})

	for name, o := range fields {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			hsI := newTestInitiator(alice, bob)
			hsR := newHandshake(bob, responder)

			m1, err := hsI.sendInit()
			require.NoError(err)

			m2, err := hsR.resp(m1)
			require.NoError(err)

			m3, err := hsI.confirm(m2)
			require.NoError(err)

			_, err = hsR.complete(flipBit(t, m3, o+1))
			require.ErrorIs(err, ErrAuthentication)
			require.Equal(stateKeyUnconfirmed, hsR.state)

			m4, err := hsR.complete(m3)
			require.NoError(err)

			err = hsI.handleComplete(m4)
			require.NoError(err)
		})
	}
}

func TestHandshakeTamperComplete(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	hsI := newTestInitiator(alice, bob)
	hsR := newHandshake(bob, responder)

	m1, err := hsI.sendInit()
	require.NoError(err)

	m2, err := hsR.resp(m1)
	require.NoError(err)

	m3, err := hsI.confirm(m2)
	require.NoError(err)

	m4, err := hsR.complete(m3)
	require.NoError(err)

	err = hsI.handleComplete(flipBit(t, m4, sidSize+ctrSize+1))
	require.ErrorIs(err, ErrAuthentication)

	err = hsI.handleComplete(m4)
	require.NoError(err)

	// The same acknowledgement is not accepted twice
	err = hsI.handleComplete(m4)
	require.ErrorIs(err, ErrStaleCounter)
}

func TestHandshakeReplay(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		require := require.New(t)

		alice, bob := newTestIdentities(t, Key{})

		m1, err := newTestInitiator(alice, bob).sendInit()
		require.NoError(err)

		_, err = newHandshake(bob, responder).resp(m1)
		require.NoError(err)

		_, err = newHandshake(bob, responder).resp(m1)
		require.ErrorIs(err, ErrReplay)
	})

	t.Run("SameTimestamp", func(t *testing.T) {
		require := require.New(t)

		alice, bob := newTestIdentities(t, Key{})

		ts := alice.now()
		alice.now = func() tai64n.Timestamp { return ts }

		m1a, err := newTestInitiator(alice, bob).sendInit()
		require.NoError(err)

		m1b, err := newTestInitiator(alice, bob).sendInit()
		require.NoError(err)
		require.NotEqual(m1a.sidi, m1b.sidi)

		_, err = newHandshake(bob, responder).resp(m1a)
		require.NoError(err)

		_, err = newHandshake(bob, responder).resp(m1b)
		require.ErrorIs(err, ErrReplay)
	})

	t.Run("OlderTimestamp", func(t *testing.T) {
		require := require.New(t)

		alice, bob := newTestIdentities(t, Key{})

		now := time.Now()
		alice.now = func() tai64n.Timestamp { return tai64nFromTime(now.Add(-time.Minute)) }

		m1Old, err := newTestInitiator(alice, bob).sendInit()
		require.NoError(err)

		alice.now = func() tai64n.Timestamp { return tai64nFromTime(now) }

		m1New, err := newTestInitiator(alice, bob).sendInit()
		require.NoError(err)

		_, err = newHandshake(bob, responder).resp(m1New)
		require.NoError(err)

		_, err = newHandshake(bob, responder).resp(m1Old)
		require.ErrorIs(err, ErrReplay)
	})
}

func TestHandshakeConcurrentReplay(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	m1, err := newTestInitiator(alice, bob).sendInit()
	require.NoError(err)

	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := newHandshake(bob, responder).resp(m1)
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
		} else {
			require.True(errors.Is(err, ErrReplay), "Unexpected error: %s", err)
		}
	}

	require.Equal(1, accepted)
}

func TestHandshakeErase(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	hsI, hsR := exchange(t, alice, bob)

	hsI.erase()
	hsR.erase()

	require.Equal(key{}, hsI.osk)
	require.Equal(key{}, hsI.txki)
	require.Equal(key{}, hsR.txkr)
}

func TestTimestampPayload(t *testing.T) {
	require := require.New(t)

	ts := tai64n.Now()

	pt := timestampPayload(ts)
	require.Len(pt, timestampPayloadSize)

	ts2, err := parseTimestampPayload(pt)
	require.NoError(err)
	require.Equal(ts, ts2)

	pt[0] = 0x02
	_, err = parseTimestampPayload(pt)
	require.ErrorIs(err, ErrFormat)

	_, err = parseTimestampPayload(pt[:5])
	require.ErrorIs(err, ErrFormat)
}

func TestHandshakeInitMessageOutlivesHandshake(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	hsI := newTestInitiator(alice, bob)
	hsR := newHandshake(bob, responder)

	m1, err := hsI.sendInit()
	require.NoError(err)

	buf := m1.MarshalBinary(nil)
	epki := bytes.Clone(m1.epki)

	m2, err := hsR.resp(m1)
	require.NoError(err)

	_, err = hsI.confirm(m2)
	require.NoError(err)
	require.Nil(hsI.epki)

	// Erasing the handshake leaves the sent message intact
	require.Equal(epki, []byte(m1.epki))
	require.Equal(buf, m1.MarshalBinary(nil))
}

func TestHandshakeRespLocalFailure(t *testing.T) {
	require := require.New(t)

	alice, bob := newTestIdentities(t, Key{})

	m1, err := newTestInitiator(alice, bob).sendInit()
	require.NoError(err)

	entropy := bob.entropy
	bob.entropy = exhaustedReader{}

	_, err = newHandshake(bob, responder).resp(m1)
	require.ErrorIs(err, errEntropyExhausted)

	bob.entropy = entropy

	// The failed attempt did not consume the timestamp
	_, err = newHandshake(bob, responder).resp(m1)
	require.NoError(err)

	_, err = newHandshake(bob, responder).resp(m1)
	require.ErrorIs(err, ErrReplay)
}
