// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg_test

import (
	"encoding/base64"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"testing"

	pqwg "cunicu.li/go-pqwg"

	"github.com/stretchr/testify/require"
)

type handshakeHandler struct {
	keys    chan pqwg.Key
	expired chan pqwg.PeerID
}

func newHandshakeHandler() *handshakeHandler {
	return &handshakeHandler{
		keys:    make(chan pqwg.Key, 16),
		expired: make(chan pqwg.PeerID, 16),
	}
}

func (h *handshakeHandler) HandshakeCompleted(_ pqwg.PeerID, key pqwg.Key) {
	h.keys <- key
}

func (h *handshakeHandler) HandshakeExpired(pid pqwg.PeerID) {
	h.expired <- pid
}

func randomPort() int {
	return int(1024 + rand.Int31n(math.MaxUint16-1024)) //nolint:gosec
}

func TestServer(t *testing.T) {
	for _, tc := range []struct {
		name          string
		pskMode       pqwg.PSKMode
		sharedPSK     bool
		peerPSK       bool
		numHandshakes int
	}{
		{"NoPSK", pqwg.PSKModeAuto, false, false, 1},
		{"PeerPSK", pqwg.PSKModeAuto, false, true, 2},
		{"SharedPSK", pqwg.PSKModeShared, true, false, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testHandshake(t, tc.pskMode, tc.sharedPSK, tc.peerPSK, tc.numHandshakes)
		})
	}
}

func testHandshake(t *testing.T, pskMode pqwg.PSKMode, sharedPSK, peerPSK bool, numHandshakes int) {
	require := require.New(t)

	// Generate keys
	var psk pqwg.Key
	if sharedPSK || peerPSK {
		var err error
		psk, err = pqwg.GeneratePresharedKey()
		require.NoError(err)
	}

	publicKeyAlice, secretKeyAlice, err := pqwg.GenerateKeyPair()
	require.NoError(err)

	publicKeyBob, secretKeyBob, err := pqwg.GenerateKeyPair()
	require.NoError(err)

	// Generate configurations
	handlerAlice := newHandshakeHandler()
	handlerBob := newHandshakeHandler()

	portAlice := randomPort()
	portBob := randomPort()

	cfgAlice := pqwg.Config{
		PublicKey: publicKeyAlice,
		SecretKey: secretKeyAlice,
		ListenAddrs: []*net.UDPAddr{
			{
				IP:   net.IPv4(127, 0, 0, 1),
				Port: portAlice,
			},
		},
		Peers: []pqwg.PeerConfig{
			{
				PublicKey: publicKeyBob,
				PSKMode:   pskMode,
				Endpoint: &net.UDPAddr{
					IP:   net.IPv4(127, 0, 0, 1),
					Port: portBob,
				},
			},
		},
		Handlers: []pqwg.Handler{
			handlerAlice,
		},
		Logger: slog.Default().With("node", "alice"),
	}

	cfgBob := pqwg.Config{
		PublicKey: publicKeyBob,
		SecretKey: secretKeyBob,
		ListenAddrs: []*net.UDPAddr{
			{
				IP:   net.IPv4(127, 0, 0, 1),
				Port: portBob,
			},
		},
		Peers: []pqwg.PeerConfig{
			{
				// Bob should be responder
				// so we dont specify and endpoint for Alice
				PublicKey: publicKeyAlice,
				PSKMode:   pskMode,
			},
		},
		Handlers: []pqwg.Handler{
			handlerBob,
		},
		Logger: slog.Default().With("node", "bob"),
	}

	if sharedPSK {
		cfgAlice.PresharedKey = psk
		cfgBob.PresharedKey = psk
	}

	if peerPSK {
		cfgAlice.Peers[0].PresharedKey = psk
		cfgBob.Peers[0].PresharedKey = psk
	}

	// Create servers
	svrAlice, err := pqwg.NewUDPServer(cfgAlice)
	require.NoError(err)

	svrBob, err := pqwg.NewUDPServer(cfgBob)
	require.NoError(err)

	require.Equal(pqwg.PeerIDFromPublicKey(publicKeyAlice), svrAlice.PID())

	err = svrBob.Run()
	require.NoError(err)

	err = svrAlice.Run()
	require.NoError(err)

	for i := 0; i < numHandshakes; i++ {
		oskAlice := <-handlerAlice.keys
		oskBob := <-handlerBob.keys

		require.Equal(oskAlice, oskBob, "Keys differ in exchange %d", i)

		t.Logf("OSK: %s\n", base64.StdEncoding.EncodeToString(oskAlice[:]))
	}

	// Alice keeps rekeying, but Bob is gone
	err = svrBob.Close()
	require.NoError(err)

	expired := <-handlerAlice.expired
	require.Equal(expired, cfgAlice.Peers[0].PID())

	require.NoError(svrAlice.Close())
}

func TestServerInvalidConfig(t *testing.T) {
	publicKey, secretKey, err := pqwg.GenerateKeyPair()
	require.NoError(t, err)

	for name, cfg := range map[string]pqwg.Config{
		"MissingPublicKey": {
			SecretKey: secretKey,
		},
		"MissingSecretKey": {
			PublicKey: publicKey,
		},
		"ShortPublicKey": {
			PublicKey: publicKey[:10],
			SecretKey: secretKey,
		},
		"PeerWithoutKey": {
			PublicKey: publicKey,
			SecretKey: secretKey,
			Peers: []pqwg.PeerConfig{
				{},
			},
		},
		"SharedPSKModeWithoutKey": {
			PublicKey: publicKey,
			SecretKey: secretKey,
			Peers: []pqwg.PeerConfig{
				{
					PublicKey: publicKey,
					PSKMode:   pqwg.PSKModeShared,
				},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pqwg.NewServer(cfg)
			require.Error(t, err)
		})
	}
}

func TestServerInitiateUnknownPeer(t *testing.T) {
	require := require.New(t)

	publicKey, secretKey, err := pqwg.GenerateKeyPair()
	require.NoError(err)

	svr, err := pqwg.NewUDPServer(pqwg.Config{
		PublicKey: publicKey,
		SecretKey: secretKey,
		ListenAddrs: []*net.UDPAddr{
			{
				IP: net.IPv4(127, 0, 0, 1),
			},
		},
	})
	require.NoError(err)

	err = svr.Initiate(pqwg.PeerID{})
	require.ErrorIs(err, pqwg.ErrPeerNotFound)

	require.NoError(svr.Close())
}
