// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

//go:build !cgo && (freebsd || openbsd)

package handlers

import (
	pqwg "cunicu.li/go-pqwg"
)

// WireGuardHandler installs exchanged keys as WireGuard pre-shared keys
// by invoking wg(8).
type WireGuardHandler struct {
	*ExchangeCommandHandler
}

func NewWireGuardHandler() (hdlr *WireGuardHandler, err error) {
	return &WireGuardHandler{NewExchangeCommandHandler()}, nil
}

func (h *WireGuardHandler) AddPeer(pid pqwg.PeerID, intf string, pk pqwg.Key) {
	h.ExchangeCommandHandler.AddPeerCommand(pid, []string{
		"wg",
		"set", intf,
		"peer", pk.String(),
		"preshared-key", "/dev/stdin",
	})
}

func (h *WireGuardHandler) HandshakeExpired(pid pqwg.PeerID) {
	key, err := pqwg.GeneratePresharedKey()
	if err != nil {
		return
	}

	h.run(pid, key)
}

func (h *WireGuardHandler) Close() error {
	return nil
}
