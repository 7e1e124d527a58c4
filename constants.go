// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import "time"

var (
	lblProtocol            = []byte("pqwg 1 aead=chachapoly1305 hash=blake2s ekem=kyber512 skem=mceliece460896 prf=hkdf-blake2s")
	lblMac                 = []byte("mac")
	lblPeerID              = []byte("peer id")
	lblMix                 = []byte("mix")
	lblChainingKeyInit     = []byte("chaining key init")
	lblTranscriptHashInit  = []byte("transcript hash init")
	lblChainingKey         = []byte("chaining key")
	lblHandshakeEncryption = []byte("handshake encryption")
	lblHandshakeConfirm    = []byte("handshake confirmation")
	lblInitiatorTransport  = []byte("initiator transport")
	lblResponderTransport  = []byte("responder transport")
	lblOutputSharedKey     = []byte("output shared key")
	lblPRFTrick            = []byte("prf trick")
)

var (
	// RejectAfterTime is the default time after which an unfinished
	// handshake is abandoned and its state discarded.
	RejectAfterTime = 10 * time.Second

	// RekeyAfterTime is the time after which an initiator
	// starts a new exchange with a peer it already shares a key with.
	RekeyAfterTime = 120 * time.Second
)
