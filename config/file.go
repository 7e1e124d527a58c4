// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	pqwg "cunicu.li/go-pqwg"
	"cunicu.li/go-pqwg/handlers"

	"github.com/pelletier/go-toml/v2"
)

type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	e, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(e)

	return nil
}

type File struct {
	PublicKey string `toml:"public_key"`
	SecretKey string `toml:"secret_key"`

	// Secret of the PRF trick. A random one is used if unset.
	PRFKey *string `toml:"prf_key,omitempty"`

	// Pre-shared key for all peers in psk_mode "shared"
	PresharedKey *string `toml:"preshared_key,omitempty"`

	Listen           []string  `toml:"listen,omitempty"`
	Verbosity        string    `toml:"verbosity,omitempty"`
	HandshakeTimeout *Duration `toml:"handshake_timeout,omitempty"`

	Peers []PeerSection `toml:"peers,omitempty"`
}

func (f *File) Load(r io.Reader) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()

	return dec.Decode(f)
}

func (f *File) Dump(w io.Writer) error {
	enc := toml.NewEncoder(w)
	return enc.Encode(f)
}

func (f *File) LoadFile(fn string) error {
	fh, err := os.Open(fn)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if err := f.Load(fh); err != nil {
		fh.Close()
		return err
	}

	if err := fh.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

func (f *File) DumpFile(fn string) error {
	fh, err := os.OpenFile(fn, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if err := f.Dump(fh); err != nil {
		fh.Close()
		return err
	}

	if err := fh.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

// ToConfig reads all referenced key files and builds a server configuration
// including the handlers requested by the peer sections.
func (f *File) ToConfig() (c pqwg.Config, err error) {
	for _, las := range f.Listen {
		la, err := net.ResolveUDPAddr("udp", las)
		if err != nil {
			return c, fmt.Errorf("failed to resolve listen address: %w", err)
		}

		c.ListenAddrs = append(c.ListenAddrs, la)
	}

	if f.PublicKey == "" {
		return c, ErrMissingPublicKey
	} else if f.SecretKey == "" {
		return c, ErrMissingSecretKey
	}

	if c.PublicKey, err = readStaticKeyFile(f.PublicKey); err != nil {
		return c, fmt.Errorf("failed to read public key: %w", err)
	}

	if c.SecretKey, err = readStaticKeyFile(f.SecretKey); err != nil {
		return c, fmt.Errorf("failed to read secret key: %w", err)
	}

	slog.Debug("Loaded static key", slog.String("path", f.PublicKey))

	if f.PRFKey != nil {
		if c.PRFKey, err = ReadKeyFile(*f.PRFKey); err != nil {
			return c, fmt.Errorf("failed to read prf key: %w", err)
		}
	}

	if f.PresharedKey != nil {
		if c.PresharedKey, err = ReadKeyFile(*f.PresharedKey); err != nil {
			return c, fmt.Errorf("failed to read preshared key: %w", err)
		}
	}

	if f.HandshakeTimeout != nil {
		c.HandshakeTimeout = time.Duration(*f.HandshakeTimeout)
	}

	var (
		kh = handlers.NewKeyoutFileHandler(os.Stdout)
		ch = handlers.NewExchangeCommandHandler()
		wh *handlers.WireGuardHandler

		useKeyout, useCmd bool
	)

	for _, p := range f.Peers {
		pc, err := p.ToConfig()
		if err != nil {
			return c, err
		}

		c.Peers = append(c.Peers, pc)

		pid := pc.PID()

		// Register peer to handlers
		if p.KeyOut != nil {
			if err := kh.AddPeerKeyoutFile(pid, *p.KeyOut); err != nil {
				return c, fmt.Errorf("failed to add keyout file: %w", err)
			}

			useKeyout = true
		}

		if p.ExchangeCommand != nil {
			ch.AddPeerCommand(pid, p.ExchangeCommand)
			useCmd = true
		}

		if p.WireGuard != nil {
			if wh == nil {
				if wh, err = handlers.NewWireGuardHandler(); err != nil {
					return c, err
				}

				c.Handlers = append(c.Handlers, wh)
			}

			wh.AddPeer(pid, p.WireGuard.Interface, p.WireGuard.PublicKey)
		}
	}

	if useKeyout {
		c.Handlers = append(c.Handlers, kh)
	}

	if useCmd {
		c.Handlers = append(c.Handlers, ch)
	}

	return c, nil
}

// FromConfig stores all keys of c as files below dir
// and fills f with references to them.
func (f *File) FromConfig(c pqwg.Config, dir string) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}

	f.Listen = nil
	for _, la := range c.ListenAddrs {
		f.Listen = append(f.Listen, la.String())
	}

	f.PublicKey = filepath.Join(dir, "public.key")
	if err := os.WriteFile(f.PublicKey, c.PublicKey, 0o644); err != nil {
		return err
	}

	f.SecretKey = filepath.Join(dir, "secret.key")
	if err := os.WriteFile(f.SecretKey, c.SecretKey, 0o600); err != nil {
		return err
	}

	if !c.PRFKey.IsZero() {
		fn := filepath.Join(dir, "prf.key")
		if err := WriteKeyFile(fn, c.PRFKey); err != nil {
			return err
		}

		f.PRFKey = &fn
	}

	if !c.PresharedKey.IsZero() {
		fn := filepath.Join(dir, "preshared.key")
		if err := WriteKeyFile(fn, c.PresharedKey); err != nil {
			return err
		}

		f.PresharedKey = &fn
	}

	if c.HandshakeTimeout > 0 {
		d := Duration(c.HandshakeTimeout)
		f.HandshakeTimeout = &d
	}

	f.Peers = nil
	for i, pc := range c.Peers {
		var ps PeerSection
		if err := ps.FromConfig(pc, filepath.Join(dir, fmt.Sprintf("peer%d", i))); err != nil {
			return err
		}

		f.Peers = append(f.Peers, ps)
	}

	return nil
}
