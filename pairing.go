// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"fmt"
	"strings"
)

// PSKMode selects which pre-shared key is mixed into the handshakes of a pairing.
type PSKMode int

const (
	// PSKModeAuto uses the peer's own key if present, the shared key if present
	// and no key otherwise.
	PSKModeAuto PSKMode = iota
	PSKModeNone
	PSKModeShared
	PSKModePeer
)

func (m PSKMode) String() string {
	switch m {
	case PSKModeAuto:
		return "auto"
	case PSKModeNone:
		return "none"
	case PSKModeShared:
		return "shared"
	case PSKModePeer:
		return "peer"
	default:
		return "<Unknown>"
	}
}

func (m PSKMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PSKMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "auto":
		*m = PSKModeAuto
	case "none":
		*m = PSKModeNone
	case "shared":
		*m = PSKModeShared
	case "peer":
		*m = PSKModePeer
	default:
		return fmt.Errorf("unknown psk mode: %s", text)
	}

	return nil
}

// resolvePSK returns the effective mode and key for a pairing.
func resolvePSK(mode PSKMode, peerPSK, sharedPSK Key) (PSKMode, Key, error) {
	if mode == PSKModeAuto {
		switch {
		case !peerPSK.IsZero():
			mode = PSKModePeer
		case !sharedPSK.IsZero():
			mode = PSKModeShared
		default:
			mode = PSKModeNone
		}
	}

	switch mode {
	case PSKModeNone:
		return mode, Key{}, nil

	case PSKModeShared:
		if sharedPSK.IsZero() {
			return mode, Key{}, fmt.Errorf("psk mode %s requires a shared pre-shared key", mode)
		}
		return mode, sharedPSK, nil

	case PSKModePeer:
		if peerPSK.IsZero() {
			return mode, Key{}, fmt.Errorf("psk mode %s requires a pre-shared key for the peer", mode)
		}
		return mode, peerPSK, nil

	default:
		return mode, Key{}, fmt.Errorf("invalid psk mode: %d", mode)
	}
}
