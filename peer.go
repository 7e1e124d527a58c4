// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

type PeerConfig struct {
	Endpoint     *net.UDPAddr // The peers's endpoint
	PublicKey    PublicKey    // The peer’s public key
	PresharedKey PresharedKey // The peer's pre-shared key
	PSKMode      PSKMode      // Selects the pre-shared key mixed into handshakes
}

func (p *PeerConfig) PID() PeerID {
	return PeerIDFromPublicKey(p.PublicKey)
}

// peer is the remote end of a pairing.
type peer struct {
	pid     PeerID
	spkt    spk     // The peer’s public key
	psk     Key     // The effective pre-shared key
	pskMode PSKMode // The effective pre-shared key mode
	macKey  key     // Key for envelopes addressed to the peer

	endpoint     Endpoint
	endpointLock sync.RWMutex // Protects endpoint

	rekeyTimer *time.Timer
	rekeyLock  sync.Mutex // Protects rekeyTimer

	logger *slog.Logger
}

func newPeer(cfg PeerConfig, sharedPSK Key, logger *slog.Logger) (*peer, error) {
	if cfg.PublicKey == nil {
		return nil, ErrMissingPublicKey
	} else if len(cfg.PublicKey) != spkSize {
		return nil, fmt.Errorf("%w: invalid public key length %d", ErrFormat, len(cfg.PublicKey))
	}

	mode, psk, err := resolvePSK(cfg.PSKMode, Key(cfg.PresharedKey), sharedPSK)
	if err != nil {
		return nil, err
	}

	p := &peer{
		pid:     cfg.PID(),
		spkt:    cfg.PublicKey,
		psk:     psk,
		pskMode: mode,
		macKey:  macKey(cfg.PublicKey),
	}

	if cfg.Endpoint != nil {
		p.endpoint = (*UDPEndpoint)(cfg.Endpoint)
	}

	p.logger = logger.With(slog.Any("pid", p.pid))

	return p, nil
}

func (p *peer) currentEndpoint() Endpoint {
	p.endpointLock.RLock()
	defer p.endpointLock.RUnlock()

	return p.endpoint
}

// learnEndpoint updates the endpoint after an authenticated exchange.
func (p *peer) learnEndpoint(ep Endpoint) {
	if ep == nil {
		return
	}

	p.endpointLock.Lock()
	defer p.endpointLock.Unlock()

	if p.endpoint == nil || !p.endpoint.Equal(ep) {
		p.logger.Debug("Learned new endpoint", slog.Any("endpoint", ep))
		p.endpoint = ep
	}
}

func (p *peer) scheduleRekey(after time.Duration, f func()) {
	p.rekeyLock.Lock()
	defer p.rekeyLock.Unlock()

	if p.rekeyTimer != nil {
		p.rekeyTimer.Stop()
	}

	p.rekeyTimer = time.AfterFunc(after, f)
}

func (p *peer) stopRekey() {
	p.rekeyLock.Lock()
	defer p.rekeyLock.Unlock()

	if p.rekeyTimer != nil {
		p.rekeyTimer.Stop()
		p.rekeyTimer = nil
	}
}
