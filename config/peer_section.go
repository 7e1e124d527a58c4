// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	pqwg "cunicu.li/go-pqwg"
)

type WireGuardSection struct {
	// Name of the WireGuard interface
	Interface string `toml:"interface"`

	// WireGuard public key of the peer
	PublicKey pqwg.Key `toml:"public_key"`
}

type PeerSection struct {
	// The peer’s public key
	PublicKey string `toml:"public_key"`

	// The peers's endpoint
	Endpoint *string `toml:"endpoint,omitempty"`

	// The peer's pre-shared key
	PresharedKey *string `toml:"preshared_key,omitempty"`

	// Selects the pre-shared key: auto, none, shared or peer
	PSKMode *pqwg.PSKMode `toml:"psk_mode,omitempty"`

	KeyOut *string `toml:"key_out,omitempty"`

	ExchangeCommand []string `toml:"exchange_command,multiline,omitempty"`

	WireGuard *WireGuardSection `toml:"wireguard,omitempty"`
}

func (p *PeerSection) ToConfig() (pc pqwg.PeerConfig, err error) {
	if p.PublicKey == "" {
		return pc, ErrMissingPublicKey
	}

	if pc.PublicKey, err = readStaticKeyFile(p.PublicKey); err != nil {
		return pc, fmt.Errorf("failed to read public key: %w", err)
	}

	if p.PresharedKey != nil {
		if pc.PresharedKey, err = ReadKeyFile(*p.PresharedKey); err != nil {
			return pc, fmt.Errorf("failed to read preshared key: %w", err)
		}
	}

	if p.PSKMode != nil {
		pc.PSKMode = *p.PSKMode
	}

	if p.Endpoint != nil {
		if pc.Endpoint, err = net.ResolveUDPAddr("udp", *p.Endpoint); err != nil {
			return pc, fmt.Errorf("failed to resolve endpoint: %w", err)
		}
	}

	return pc, nil
}

func (p *PeerSection) FromConfig(pc pqwg.PeerConfig, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}

	if pc.Endpoint != nil {
		ep := pc.Endpoint.String()
		p.Endpoint = &ep
	}

	p.PublicKey = filepath.Join(dir, "public.key")
	if err := os.WriteFile(p.PublicKey, pc.PublicKey, 0o644); err != nil {
		return err
	}

	if !pc.PresharedKey.IsZero() {
		fn := filepath.Join(dir, "preshared.key")
		if err := WriteKeyFile(fn, pc.PresharedKey); err != nil {
			return err
		}

		p.PresharedKey = &fn
	}

	if pc.PSKMode != pqwg.PSKModeAuto {
		mode := pc.PSKMode
		p.PSKMode = &mode
	}

	return nil
}
