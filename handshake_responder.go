// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Step 2: Resp
func (hs *handshake) handleInit(m *initMsg) error {
	l := hs.local

	// INR1: Bind the chain to our public key and the initiator's ephemeral key.
	c := newChain(l.spkm)
	c.bindEphemeral(m.epki)
	c.mixHash(m.sidi[:])

	// INR2: Decapsulate the secret the initiator sent to our static key.
	k, err := c.decapAndMix(kemStatic, l.sskm, l.spkm, m.sctr)
	if err != nil {
		return fmt.Errorf("failed to decapsulate (INR2): %w", err)
	}

	// INR3: Recover the initiator's identity.
	pidi, err := c.open(k, m.astat[:])
	if err != nil {
		return fmt.Errorf("failed to open identity (INR3): %w", err)
	} else if len(pidi) != pidSize {
		return fmt.Errorf("invalid peer id (INR3): %w", ErrFormat)
	}

	// The peer is only authenticated by RSR3 which encapsulates to its static key.
	p, ok := l.peers[PeerID(pidi)]
	if !ok {
		return fmt.Errorf("failed to lookup peer %s (INR3): %w", PeerID(pidi), ErrPeerNotFound)
	}

	// INR4: Mix in the PSK as optional static symmetric key.
	k = c.mixKey(p.psk[:])

	// INR5: Open the timestamp.
	pt, err := c.open(k, m.ats[:])
	if err != nil {
		return fmt.Errorf("failed to open timestamp (INR5): %w", err)
	}

	ts, err := parseTimestampPayload(pt)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp (INR5): %w", err)
	}

	// INR6: Reject the same or an older timestamp early.
	// It is only recorded once the response is ready (RSR7).
	if !l.ledger.fresh(p.pid, ts) {
		return fmt.Errorf("%w (INR6): %s", ErrReplay, ts)
	}

	hs.peer = p
	hs.tsi = ts
	hs.sidi = m.sidi
	hs.epki = bytes.Clone(m.epki)
	hs.chain = c

	return nil
}

func (hs *handshake) sendResp() (*respMsg, error) {
	var err error

	l := hs.local
	p := hs.peer
	c := hs.chain

	// RSR1: Responder generates a session ID.
	if hs.sidr, err = l.sessions.newSessionID(l.entropy); err != nil {
		return nil, fmt.Errorf("failed to generate session id (RSR1): %w", err)
	}

	// RSR2: Mix both session IDs as part of the protocol transcript.
	c.mixHash(hs.sidi[:], hs.sidr[:])

	// RSR3: Key encapsulation using the initiator’s static key, to authenticate the initiator.
	scti, _, err := c.encapAndMix(&l.enc, kemStatic, p.spkt)
	if err != nil {
		return nil, fmt.Errorf("failed to encapsulate (RSR3): %w", err)
	}

	// RSR4: Key encapsulation using the ephemeral key, to provide forward secrecy.
	ecti, _, err := c.encapAndMix(&l.enc, kemEphemeral, hs.epki)
	if err != nil {
		return nil, fmt.Errorf("failed to encapsulate (RSR4): %w", err)
	}

	// RSR5: Mix in the PSK again.
	k := c.mixKey(p.psk[:])

	// RSR6: Add an empty authenticated payload.
	aempt, err := c.seal(k, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seal (RSR6): %w", err)
	}

	// RSR7: Commit the timestamp. A concurrent replay of the same Init loses here.
	if !l.ledger.accept(p.pid, hs.tsi) {
		c.erase()
		return nil, fmt.Errorf("%w (RSR7): %s", ErrReplay, hs.tsi)
	}

	hs.chain = c
	hs.state = stateKeyUnconfirmed

	return &respMsg{
		sidi:  hs.sidi,
		sidr:  hs.sidr,
		scti:  scti,
		ecti:  ecti,
		aempt: authTag(aempt),
	}, nil
}

// resp consumes an Init message and produces the matching Resp message.
func (hs *handshake) resp(m *initMsg) (*respMsg, error) {
	if err := hs.handleInit(m); err != nil {
		return nil, err
	}

	return hs.sendResp()
}

// Step 4: Complete
func (hs *handshake) complete(m *confirmMsg) (*completeMsg, error) {
	c := hs.chain

	// CFR1: Check the confirmation.
	if m.sidi != hs.sidi {
		return nil, fmt.Errorf("session id mismatch (CFR1): %w", ErrAuthentication)
	}

	if _, err := c.open(c.confirmationKey(), m.aconf[:]); err != nil {
		return nil, fmt.Errorf("failed to open confirmation (CFR1): %w", err)
	}

	hs.chain = c

	// CFR2: Derive the transport keys.
	hs.enterTransport()

	// CFR3: Acknowledge the confirmation under the transport key.
	return hs.sendComplete()
}

func (hs *handshake) sendComplete() (*completeMsg, error) {
	hs.txnm++

	ctr := [ctrSize]byte{}
	binary.LittleEndian.PutUint64(ctr[:], hs.txnm)

	auth, err := aeadSealCounter(hs.txkr, hs.txnm, nil)
	if err != nil {
		return nil, err
	}

	return &completeMsg{
		sidi: hs.sidi,
		ctr:  ctr,
		auth: authTag(auth),
	}, nil
}
