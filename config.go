// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"io"
	"log/slog"
	"net"
	"time"
)

type Config struct {
	ListenAddrs []*net.UDPAddr

	PublicKey PublicKey
	SecretKey SecretKey

	// PRFKey is the secret of the PRF trick which re-randomizes
	// all encapsulations. A random key is generated if unset.
	PRFKey Key

	// PresharedKey is mixed into the handshakes of all peers using PSKModeShared.
	PresharedKey PresharedKey

	// HandshakeTimeout is the time after which an unfinished
	// handshake is discarded. Defaults to RejectAfterTime.
	HandshakeTimeout time.Duration

	Peers    []PeerConfig
	Handlers []Handler

	Conn Conn

	// Entropy is the source of all fresh randomness.
	// Defaults to crypto/rand.Reader.
	Entropy io.Reader

	Logger *slog.Logger

	closeConn bool
}
