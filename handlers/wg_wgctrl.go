// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

//go:build cgo || !(freebsd || openbsd)

package handlers

import (
	"fmt"
	"log/slog"

	pqwg "cunicu.li/go-pqwg"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type wireGuardPeer struct {
	Interface string
	PublicKey pqwg.Key
}

// WireGuardHandler installs exchanged keys as WireGuard pre-shared keys.
type WireGuardHandler struct {
	client *wgctrl.Client
	peers  map[pqwg.PeerID]wireGuardPeer
}

func NewWireGuardHandler() (hdlr *WireGuardHandler, err error) {
	hdlr = &WireGuardHandler{
		peers: map[pqwg.PeerID]wireGuardPeer{},
	}

	if hdlr.client, err = wgctrl.New(); err != nil {
		return nil, fmt.Errorf("failed to create WireGuard client: %w", err)
	}

	return hdlr, nil
}

func (h *WireGuardHandler) AddPeer(pid pqwg.PeerID, intf string, pk pqwg.Key) {
	h.peers[pid] = wireGuardPeer{
		Interface: intf,
		PublicKey: pk,
	}
}

func (h *WireGuardHandler) HandshakeCompleted(pid pqwg.PeerID, key pqwg.Key) {
	h.outputKey(pqwg.KeyOutputReasonExchanged, pid, key)
}

// HandshakeExpired installs a random key, which effectively
// blocks the WireGuard session until the next exchange.
func (h *WireGuardHandler) HandshakeExpired(pid pqwg.PeerID) {
	key, err := pqwg.GeneratePresharedKey()
	if err != nil {
		slog.Error("Failed to generate key", slog.Any("error", err))
		return
	}

	h.outputKey(pqwg.KeyOutputReasonStale, pid, key)
}

func (h *WireGuardHandler) Close() error {
	return h.client.Close()
}

func (h *WireGuardHandler) outputKey(reason pqwg.KeyOutputReason, pid pqwg.PeerID, psk pqwg.Key) {
	wg, ok := h.peers[pid]
	if !ok {
		return
	}

	if err := h.client.ConfigureDevice(wg.Interface, wgtypes.Config{
		Peers: []wgtypes.PeerConfig{
			{
				UpdateOnly:   true,
				PublicKey:    wgtypes.Key(wg.PublicKey),
				PresharedKey: (*wgtypes.Key)(&psk),
			},
		},
	}); err != nil {
		slog.Error("Failed to configure WireGuard peer",
			slog.String("interface", wg.Interface),
			slog.Any("peer", wg.PublicKey),
			slog.Any("error", err))
		return
	}

	slog.Debug("Installed pre-shared key",
		slog.String("interface", wg.Interface),
		slog.Any("peer", wg.PublicKey),
		slog.String("reason", string(reason)))
}
