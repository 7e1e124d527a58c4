// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.zx2c4.com/wireguard/tai64n"
)

type msgType uint8

const (
	msgTypeInit msgType = iota + 1
	msgTypeResp
	msgTypeConfirm
	msgTypeComplete
)

func (t msgType) String() string {
	switch t {
	case msgTypeInit:
		return "Init"
	case msgTypeResp:
		return "Resp"
	case msgTypeConfirm:
		return "Confirm"
	case msgTypeComplete:
		return "Complete"
	default:
		return "<Unknown>"
	}
}

func msgTypeFromPayload(pl Payload) msgType {
	switch pl.(type) {
	case *initMsg:
		return msgTypeInit
	case *respMsg:
		return msgTypeResp
	case *confirmMsg:
		return msgTypeConfirm
	case *completeMsg:
		return msgTypeComplete
	default:
		return 0
	}
}

const (
	hashSize = blake2s.Size

	sidSize = 4        // Session ID size
	pidSize = hashSize // Peer ID size
	keySize = chacha20poly1305.KeySize

	authSize  = chacha20poly1305.Overhead // ChaCha20-Poly1305 authentication tag
	nonceSize = chacha20poly1305.NonceSize
	ctrSize   = 8 // Transport counter size

	freshRandomSize = 32 // Input of the PRF trick

	timestampPayloadSize = 1 + tai64n.TimestampSize

	astatSize = pidSize + authSize
	atsSize   = timestampPayloadSize + authSize

	// Envelope
	macSize      = 16
	cookieSize   = 16
	envelopeSize = 1 + 3 + macSize + cookieSize

	confirmMsgSize  = 2*sidSize + authSize
	completeMsgSize = sidSize + ctrSize + authSize
)

// Sizes of KEM artifacts are determined by the schemes in use.
var (
	sctSize = kemStatic.CiphertextSize()    // Static cipher text size
	spkSize = kemStatic.PublicKeySize()     // Static public key size
	sskSize = kemStatic.PrivateKeySize()    // Static secret key size
	ectSize = kemEphemeral.CiphertextSize() // Ephemeral cipher text size
	epkSize = kemEphemeral.PublicKeySize()  // Ephemeral public key size

	initMsgSize = sidSize + sctSize + epkSize + astatSize + atsSize
	respMsgSize = 2*sidSize + sctSize + ectSize + authSize

	maxEnvelopeSize = envelopeSize + max(initMsgSize, respMsgSize)
)

type (
	authTag [authSize]byte // Authentication tag
	cookie  [cookieSize]byte
	key     [keySize]byte
	mac     [macSize]byte // Message authentication code
	nonce   [nonceSize]byte
	sid     [sidSize]byte // Session ID
	pid     [pidSize]byte // Peer ID

	sct []byte // Static cipher text
	ect []byte // Ephemeral cipher text
	epk []byte // Ephemeral public key
	esk []byte // Ephemeral secret key
)

type (
	Key          key
	PeerID       pid
	PresharedKey = Key
	PublicKey    []byte // Static public key
	SecretKey    []byte // Static secret key

	spk = PublicKey
	ssk = SecretKey
)

func (s sid) String() string {
	return fmt.Sprintf("%x", s[:])
}

func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

func (k Key) IsZero() bool {
	return k == Key{}
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	buf, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	} else if len(buf) != keySize {
		return fmt.Errorf("%w: invalid key length %d", ErrFormat, len(buf))
	}

	*k = Key(buf)

	return nil
}

func ParseKey(s string) (k Key, err error) {
	err = k.UnmarshalText([]byte(s))
	return k, err
}

func (p PeerID) String() string {
	return base64.StdEncoding.EncodeToString(p[:])
}

func (p PeerID) LogValue() slog.Value {
	return slog.StringValue(p.String())
}

func ParsePeerID(s string) (PeerID, error) {
	k, err := ParseKey(s)
	return PeerID(k), err
}

func PeerIDFromPublicKey(spk PublicKey) PeerID {
	return PeerID(lhash(lblPeerID, spk))
}
