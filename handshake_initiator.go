// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Step 1: Init
func (hs *handshake) sendInit() (*initMsg, error) {
	var err error

	l := hs.local
	p := hs.peer

	// INI1: The session ID is used to associate packets with the handshake state.
	if hs.sidi, err = l.sessions.newSessionID(l.entropy); err != nil {
		return nil, fmt.Errorf("failed to generate session id (INI1): %w", err)
	}

	// INI2: Generate fresh ephemeral keys, for forward secrecy.
	if hs.epki, hs.eski, err = generateEphemeralKeyPair(l.entropy); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key pair (INI2): %w", err)
	}

	// INI3: Bind the chain to the responder’s public key and our ephemeral key.
	c := newChain(p.spkt)
	c.bindEphemeral(hs.epki)
	c.mixHash(hs.sidi[:])

	// INI4: Key encapsulation using the responder’s public key. Authenticates the responder.
	sctr, k, err := c.encapAndMix(&l.enc, kemStatic, p.spkt)
	if err != nil {
		return nil, fmt.Errorf("failed to encapsulate (INI4): %w", err)
	}

	// INI5: Tell the responder who the initiator is by transmitting the peer ID.
	astat, err := c.seal(k, l.pidm[:])
	if err != nil {
		return nil, fmt.Errorf("failed to seal identity (INI5): %w", err)
	}

	// INI6: Mix in the PSK as optional static symmetric key.
	k = c.mixKey(p.psk[:])

	// INI7: Seal a timestamp for replay protection at the responder.
	ts := l.now()
	ats, err := c.seal(k, timestampPayload(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to seal timestamp (INI7): %w", err)
	}

	hs.chain = c
	hs.state = stateAwaitingResponse

	return &initMsg{
		sidi:  hs.sidi,
		sctr:  sctr,
		epki:  bytes.Clone(hs.epki),
		astat: [astatSize]byte(astat),
		ats:   [atsSize]byte(ats),
	}, nil
}

// Step 3: Confirm

// confirm works on a copy of the chain, so that a forged Resp message leaves
// the handshake untouched.
func (hs *handshake) confirm(m *respMsg) (*confirmMsg, error) {
	l := hs.local
	p := hs.peer
	c := hs.chain

	// RSI1: Mix both session IDs as part of the protocol transcript.
	c.mixHash(m.sidi[:], m.sidr[:])

	// RSI2: Decapsulate the secret sent to our static key.
	if _, err := c.decapAndMix(kemStatic, l.sskm, l.spkm, m.scti); err != nil {
		return nil, fmt.Errorf("failed to decapsulate (RSI2): %w", err)
	}

	// RSI3: Decapsulate the secret sent to our ephemeral key.
	if _, err := c.decapAndMix(kemEphemeral, hs.eski, hs.epki, m.ecti); err != nil {
		return nil, fmt.Errorf("failed to decapsulate (RSI3): %w", err)
	}

	// RSI4: Mix in the PSK again.
	k := c.mixKey(p.psk[:])

	// RSI5: Check the empty authenticated payload.
	if _, err := c.open(k, m.aempt[:]); err != nil {
		return nil, fmt.Errorf("failed to open (RSI5): %w", err)
	}

	// CFI1: Confirm that both parties agree on the final chaining key.
	aconf, err := c.seal(c.confirmationKey(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seal confirmation (CFI1): %w", err)
	}

	hs.sidr = m.sidr
	hs.chain = c

	// CFI2: Derive the transport keys.
	hs.enterTransport()

	return &confirmMsg{
		sidi:  hs.sidi,
		sidr:  hs.sidr,
		aconf: authTag(aconf),
	}, nil
}

// Step 5: Acknowledgement of Complete
func (hs *handshake) handleComplete(m *completeMsg) error {
	txnt := binary.LittleEndian.Uint64(m.ctr[:])
	if txnt <= hs.txnt {
		return ErrStaleCounter
	}

	if _, err := aeadOpenCounter(hs.txkr, txnt, m.auth[:]); err != nil {
		return fmt.Errorf("failed to open acknowledgement: %w", err)
	}

	hs.txnt = txnt

	return nil
}
