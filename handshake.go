// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.zx2c4.com/wireguard/tai64n"
)

// Tag of the payload sealed in an Init message.
const payloadTimestamp byte = 0x01

type role int

const (
	responder role = iota
	initiator
)

func (r role) String() string {
	if r == initiator {
		return "initiator"
	}

	return "responder"
}

type state int

const (
	stateIdle state = iota
	stateAwaitingResponse
	stateKeyUnconfirmed
	stateTransport
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAwaitingResponse:
		return "awaiting-response"
	case stateKeyUnconfirmed:
		return "key-unconfirmed"
	case stateTransport:
		return "transport"
	default:
		return "<Unknown>"
	}
}

// identity is the local end of all pairings.
type identity struct {
	spkm spk    // My static public key
	sskm ssk    // My static secret key
	pidm PeerID // My peer ID

	enc     encapsulator
	entropy io.Reader
	now     func() tai64n.Timestamp

	peers    map[PeerID]*peer // Read-only after construction
	sessions *sessionStore
	ledger   *freshnessLedger
}

func newIdentity(spkm spk, sskm ssk, prfKey key, entropy io.Reader) *identity {
	return &identity{
		spkm: spkm,
		sskm: sskm,
		pidm: PeerIDFromPublicKey(spkm),
		enc: encapsulator{
			prfKey:  prfKey,
			entropy: entropy,
		},
		entropy:  entropy,
		now:      tai64n.Now,
		peers:    map[PeerID]*peer{},
		sessions: newSessionStore(),
		ledger:   newFreshnessLedger(),
	}
}

type handshake struct {
	local *identity
	peer  *peer

	role  role
	state state

	chain chain

	sidi sid // Initiator session ID
	sidr sid // Responder session ID

	tsi tai64n.Timestamp // The initiator’s timestamp

	epki epk // The initiator’s ephemeral public key
	eski esk // The initiator’s ephemeral secret key

	txki key    // Initiator transport key
	txkr key    // Responder transport key
	osk  key    // Output shared key
	txnm uint64 // My transport counter
	txnt uint64 // Their transport counter

	expiryTimer *time.Timer
	lock        sync.Mutex // Serializes message processing
}

func newHandshake(l *identity, r role) *handshake {
	return &handshake{
		local: l,
		role:  r,
		state: stateIdle,
	}
}

func (hs *handshake) localSessionID() sid {
	if hs.role == initiator {
		return hs.sidi
	}

	return hs.sidr
}

func (hs *handshake) logger() *slog.Logger {
	if hs.peer != nil {
		return hs.peer.logger
	}

	return slog.Default()
}

// Helpers

// enterTransport derives the transport keys and erases
// all ephemeral state of the handshake.
func (hs *handshake) enterTransport() {
	hs.txki, hs.txkr, hs.osk = hs.chain.transportKeys()
	hs.txnm = 0
	hs.txnt = 0

	hs.chain.erase()
	clear(hs.eski)
	clear(hs.epki)
	hs.eski = nil
	hs.epki = nil

	hs.state = stateTransport

	hs.logger().Debug("Entered transport state", slog.String("role", hs.role.String()))
}

// erase destroys all key material of the handshake.
func (hs *handshake) erase() {
	hs.chain.erase()
	clear(hs.eski)
	hs.eski = nil
	hs.txki.erase()
	hs.txkr.erase()
	hs.osk.erase()
}

func timestampPayload(ts tai64n.Timestamp) []byte {
	return append([]byte{payloadTimestamp}, ts[:]...)
}

func parseTimestampPayload(pt []byte) (ts tai64n.Timestamp, err error) {
	if len(pt) != timestampPayloadSize || pt[0] != payloadTimestamp {
		return ts, ErrFormat
	}

	copy(ts[:], pt[1:])

	return ts, nil
}
