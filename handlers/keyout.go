// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	pqwg "cunicu.li/go-pqwg"
)

// KeyoutFileHandler writes exchanged keys to per-peer files
// and announces them on an output stream.
type KeyoutFileHandler struct {
	peers  map[pqwg.PeerID]string
	output io.Writer
	lock   sync.Mutex // Serializes file writes and output lines
}

func NewKeyoutFileHandler(output io.Writer) *KeyoutFileHandler {
	if output == nil {
		output = os.Stdout
	}

	return &KeyoutFileHandler{
		peers:  map[pqwg.PeerID]string{},
		output: output,
	}
}

func (h *KeyoutFileHandler) AddPeerKeyoutFile(pid pqwg.PeerID, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}

	h.peers[pid] = path

	return nil
}

func (h *KeyoutFileHandler) HandshakeCompleted(pid pqwg.PeerID, key pqwg.Key) {
	h.outputKey(pqwg.KeyOutputReasonExchanged, pid, key)
}

// HandshakeExpired replaces the key by a random one,
// so that a stale key is never used any longer.
func (h *KeyoutFileHandler) HandshakeExpired(pid pqwg.PeerID) {
	key, err := pqwg.GeneratePresharedKey()
	if err != nil {
		slog.Error("Failed to generate key", slog.Any("error", err))
		return
	}

	h.outputKey(pqwg.KeyOutputReasonStale, pid, key)
}

func (h *KeyoutFileHandler) outputKey(reason pqwg.KeyOutputReason, pid pqwg.PeerID, key pqwg.Key) {
	fn, ok := h.peers[pid]
	if !ok {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if err := os.WriteFile(fn, []byte(key.String()), 0o600); err != nil {
		slog.Error("Failed to write", slog.Any("error", err))
		return
	}

	ko := pqwg.KeyOutput{
		Peer:    pid,
		KeyFile: fn,
		Why:     reason,
	}

	if _, err := ko.Dump(h.output); err != nil {
		slog.Error("Failed to write key output", slog.Any("error", err))
	}
}
