// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"log/slog"
	"os/exec"
	"strings"

	pqwg "cunicu.li/go-pqwg"
)

// ExchangeCommandHandler runs a command for every exchanged key.
// The key is passed base64-encoded via stdin.
type ExchangeCommandHandler struct {
	peers map[pqwg.PeerID][]string

	// done is invoked after each command has finished.
	done func(pqwg.PeerID, error)
}

func NewExchangeCommandHandler() *ExchangeCommandHandler {
	return &ExchangeCommandHandler{
		peers: map[pqwg.PeerID][]string{},
	}
}

func (h *ExchangeCommandHandler) AddPeerCommand(pid pqwg.PeerID, cmd []string) {
	h.peers[pid] = cmd
}

func (h *ExchangeCommandHandler) RemovePeer(pid pqwg.PeerID) {
	delete(h.peers, pid)
}

func (h *ExchangeCommandHandler) HandshakeCompleted(pid pqwg.PeerID, key pqwg.Key) {
	h.run(pid, key)
}

func (h *ExchangeCommandHandler) run(pid pqwg.PeerID, key pqwg.Key) {
	cmd, ok := h.peers[pid]
	if !ok || len(cmd) < 1 {
		return
	}

	out := &bytes.Buffer{}

	c := exec.Command(cmd[0], cmd[1:]...) // nolint:gosec
	c.Stdin = strings.NewReader(key.String() + "\n")
	c.Stdout = out
	c.Stderr = out

	go func() {
		err := c.Run()
		if err != nil {
			outStr := strings.TrimSpace(out.String())
			slog.Error("Failed to run command",
				slog.Any("pid", pid),
				slog.Any("error", err),
				slog.String("output", outStr))
		}

		if h.done != nil {
			h.done(pid, err)
		}
	}()
}
