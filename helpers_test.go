// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/tai64n"
)

var errEntropyExhausted = errors.New("entropy exhausted")

type exhaustedReader struct{}

func (exhaustedReader) Read([]byte) (int, error) {
	return 0, errEntropyExhausted
}

type staticKeyPair struct {
	spk spk
	ssk ssk
}

// Classic McEliece key generation is slow, hence all tests share two key pairs.
var testKeyPairs = sync.OnceValue(func() (kps [2]staticKeyPair) {
	for i := range kps {
		var err error
		if kps[i].spk, kps[i].ssk, err = generateStaticKeyPair(rand.Reader); err != nil {
			panic(err)
		}
	}

	return kps
})

// newTestIdentities returns an initiator and a responder identity
// which know each other. Both use psk as per-peer pre-shared key.
func newTestIdentities(t *testing.T, psk Key) (alice, bob *identity) {
	require := require.New(t)

	kps := testKeyPairs()

	prfKeyAlice, err := generateKey(rand.Reader)
	require.NoError(err)

	prfKeyBob, err := generateKey(rand.Reader)
	require.NoError(err)

	alice = newIdentity(kps[0].spk, kps[0].ssk, key(prfKeyAlice), rand.Reader)
	bob = newIdentity(kps[1].spk, kps[1].ssk, key(prfKeyBob), rand.Reader)

	// tai64n.Now() is whitened to a coarse resolution.
	// Back-to-back handshakes need strictly increasing timestamps.
	alice.now = monotonicClock()
	bob.now = monotonicClock()

	addTestPeer(t, alice, bob.spkm, psk)
	addTestPeer(t, bob, alice.spkm, psk)

	return alice, bob
}

func addTestPeer(t *testing.T, l *identity, spkt spk, psk Key) *peer {
	p, err := newPeer(PeerConfig{
		PublicKey:    spkt,
		PresharedKey: psk,
	}, Key{}, slog.Default())
	require.NoError(t, err)

	l.peers[p.pid] = p

	return p
}

func newTestInitiator(l *identity, r *identity) *handshake {
	hs := newHandshake(l, initiator)
	hs.peer = l.peers[r.pidm]

	return hs
}

// flipBit returns a copy of m with a single bit at offset o inverted.
func flipBit[M any, PM interface {
	*M
	Payload
}](t *testing.T, m PM, o int) PM {
	buf := m.MarshalBinary(nil)
	buf[o] ^= 0x04

	var m2 M
	_, err := PM(&m2).UnmarshalBinary(buf)
	require.NoError(t, err)

	return &m2
}

func tai64nFromTime(t time.Time) (ts tai64n.Timestamp) {
	const base = uint64(0x400000000000000a)

	binary.BigEndian.PutUint64(ts[:], base+uint64(t.Unix()))
	binary.BigEndian.PutUint32(ts[8:], uint32(t.Nanosecond()))

	return ts
}

func monotonicClock() func() tai64n.Timestamp {
	var (
		last time.Time
		lock sync.Mutex
	)

	return func() tai64n.Timestamp {
		lock.Lock()
		defer lock.Unlock()

		now := time.Now()
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}

		last = now

		return tai64nFromTime(now)
	}
}
