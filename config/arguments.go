// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"

	pqwg "cunicu.li/go-pqwg"
)

var (
	ErrMissingPublicKey = errors.New("missing public key")
	ErrMissingSecretKey = errors.New("missing secret key")

	errTruncatedArgs = errors.New("truncated arguments")
)

// popValue takes the value of option opt from the front of args.
func popValue(args []string, opt, usage string) (string, []string, error) {
	if len(args) < 1 {
		return "", nil, fmt.Errorf("%w: missing %s %s", errTruncatedArgs, opt, usage)
	}

	return args[0], args[1:], nil
}

// ConfigFromArgs parses the positional argument form:
//
//	public-key <file> secret-key <file> [prf-key <file>] [preshared-key <file>]
//	[listen <ip>:<port>]... [handshake-timeout <duration>] [verbose] PEERS...
func ConfigFromArgs(args []string) (_ []string, cfg File, err error) {
	var opt, val string

	for len(args) > 0 && args[0] != "peer" {
		opt, args = args[0], args[1:]

		if opt == "verbose" {
			cfg.Verbosity = "Verbose"
			continue
		}

		switch opt {
		case "secret-key", "private-key", "public-key", "prf-key", "preshared-key":
			val, args, err = popValue(args, opt, "<file-path>")
		case "listen":
			val, args, err = popValue(args, opt, "<ip>:<port>")
		case "handshake-timeout":
			val, args, err = popValue(args, opt, "<duration>")
		default:
			return nil, cfg, fmt.Errorf("invalid argument: %s", opt)
		}
		if err != nil {
			return nil, cfg, err
		}

		switch opt {
		case "secret-key", "private-key":
			cfg.SecretKey = val
		case "public-key":
			cfg.PublicKey = val
		case "prf-key":
			cfg.PRFKey = &val
		case "preshared-key":
			cfg.PresharedKey = &val
		case "listen":
			cfg.Listen = append(cfg.Listen, val)
		case "handshake-timeout":
			d := new(Duration)
			if err := d.UnmarshalText([]byte(val)); err != nil {
				return nil, cfg, fmt.Errorf("invalid handshake timeout: %w", err)
			}

			cfg.HandshakeTimeout = d
		}
	}

	if cfg.PublicKey == "" {
		return nil, cfg, ErrMissingPublicKey
	} else if cfg.SecretKey == "" {
		return nil, cfg, ErrMissingSecretKey
	}

	for len(args) > 0 {
		if args[0] != "peer" {
			return nil, cfg, fmt.Errorf("invalid argument: %s", args[0])
		}

		var ps PeerSection
		if args, ps, err = PeerConfigFromArgs(args[1:]); err != nil {
			return nil, cfg, err
		}

		cfg.Peers = append(cfg.Peers, ps)
	}

	return args, cfg, nil
}

// PeerConfigFromArgs parses a single peer up to the next "peer" keyword:
//
//	public-key <file> [endpoint <ip>:<port>] [preshared-key <file>] [psk-mode <mode>]
//	[outfile <file>] [wireguard <dev> <wg-public-key> [extra]...]
func PeerConfigFromArgs(args []string) (_ []string, ps PeerSection, err error) {
	var opt, val string

	for len(args) > 0 && args[0] != "peer" {
		opt, args = args[0], args[1:]

		switch opt {
		case "public-key", "preshared-key", "outfile":
			val, args, err = popValue(args, opt, "<file-path>")
		case "endpoint":
			val, args, err = popValue(args, opt, "<ip>:<port>")
		case "psk-mode":
			val, args, err = popValue(args, opt, "<mode>")
		case "wireguard":
			if len(args) < 2 {
				return nil, ps, fmt.Errorf("%w: missing wireguard <dev> <wg-public-key>", errTruncatedArgs)
			}
		default:
			return nil, ps, fmt.Errorf("invalid argument: %s", opt)
		}
		if err != nil {
			return nil, ps, err
		}

		switch opt {
		case "public-key":
			ps.PublicKey = val
		case "preshared-key":
			ps.PresharedKey = &val
		case "outfile":
			ps.KeyOut = &val
		case "endpoint":
			ps.Endpoint = &val
		case "psk-mode":
			m := new(pqwg.PSKMode)
			if err := m.UnmarshalText([]byte(val)); err != nil {
				return nil, ps, err
			}

			ps.PSKMode = m
		case "wireguard":
			pk, err := pqwg.ParseKey(args[1])
			if err != nil {
				return nil, ps, fmt.Errorf("invalid WireGuard public key: %w", err)
			}

			ps.WireGuard = &WireGuardSection{
				Interface: args[0],
				PublicKey: pk,
			}

			// Extra wg(8) parameters are ignored
			args = args[2:]
			for len(args) > 0 && args[0] != "peer" {
				args = args[1:]
			}
		}
	}

	if ps.PublicKey == "" {
		return nil, ps, ErrMissingPublicKey
	}

	return args, ps, nil
}
