// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pqwg "cunicu.li/go-pqwg"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// WireGuardConfigDir holds the post-quantum keys of WireGuard interfaces.
// Each interface has its own sub-directory containing
// the static key pair (pqpk, pqsk) and per-peer public keys (<wg-pk>.pqpk)
// and pre-shared keys (<wg-pk>.pqpsk).
var WireGuardConfigDir = "/etc/wireguard"

var errMissingListenPort = errors.New("missing listen port")

// FromWireGuardInterface builds a configuration for a running WireGuard interface.
// Only peers with a post-quantum public key are considered.
func FromWireGuardInterface(intfName string) (cfgFile File, err error) {
	client, err := wgctrl.New()
	if err != nil {
		return cfgFile, fmt.Errorf("failed to create WireGuard client: %w", err)
	}
	defer client.Close()

	dev, err := client.Device(intfName)
	if err != nil {
		return cfgFile, fmt.Errorf("failed to get interface: %w", err)
	}

	if dev.PublicKey == (wgtypes.Key{}) {
		return cfgFile, errors.New("missing public key")
	}

	dir := filepath.Join(WireGuardConfigDir, intfName)

	if cfgFile, err = newWireGuardFile(dir, dev.ListenPort); err != nil {
		return cfgFile, err
	}

	for _, peer := range dev.Peers {
		var ep *string
		if peer.Endpoint != nil {
			s := exchangeEndpoint(peer.Endpoint.IP.String(), peer.Endpoint.Port)
			ep = &s
		}

		if ps, ok := newWireGuardPeerSection(dir, intfName, pqwg.Key(peer.PublicKey), ep); ok {
			cfgFile.Peers = append(cfgFile.Peers, ps)
		}
	}

	return cfgFile, nil
}

func newWireGuardFile(dir string, listenPort int) (File, error) {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return File{}, fmt.Errorf("missing configuration directory: %s", dir)
	}

	if listenPort == 0 {
		return File{}, errMissingListenPort
	}

	return File{
		PublicKey: filepath.Join(dir, "pqpk"),
		SecretKey: filepath.Join(dir, "pqsk"),
		Listen: []string{
			exchangeEndpoint("0.0.0.0", listenPort),
			exchangeEndpoint("::", listenPort),
		},
	}, nil
}

// exchangeEndpoint returns the address of the key exchange
// which runs on the port next to the one of WireGuard.
func exchangeEndpoint(host string, wgPort int) string {
	return net.JoinHostPort(host, strconv.Itoa(wgPort+1))
}

func newWireGuardPeerSection(dir, intfName string, pk pqwg.Key, ep *string) (PeerSection, bool) {
	fn := strings.ReplaceAll(pk.String(), string(filepath.Separator), "")
	pkFile := filepath.Join(dir, fn+".pqpk")
	pskFile := filepath.Join(dir, fn+".pqpsk")

	if fi, err := os.Stat(pkFile); err != nil || fi.IsDir() {
		return PeerSection{}, false
	}

	ps := PeerSection{
		PublicKey: pkFile,
		Endpoint:  ep,
		WireGuard: &WireGuardSection{
			Interface: intfName,
			PublicKey: pk,
		},
	}

	if fi, err := os.Stat(pskFile); err == nil && !fi.IsDir() {
		ps.PresharedKey = &pskFile
	}

	return ps, true
}
