// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber512"
	"github.com/cloudflare/circl/kem/mceliece/mceliece460896"
)

type kemScheme = kem.Scheme

var (
	kemStatic    = mceliece460896.Scheme()
	kemEphemeral = kyber512.Scheme()
)

func generateStaticKeyPair(rd io.Reader) (spk, ssk, error) {
	pk, sk, err := deriveKeyPair(kemStatic, rd)
	if err != nil {
		return nil, nil, err
	}

	return spk(pk), ssk(sk), nil
}

func generateEphemeralKeyPair(rd io.Reader) (epk, esk, error) {
	pk, sk, err := deriveKeyPair(kemEphemeral, rd)
	if err != nil {
		return nil, nil, err
	}

	return epk(pk), esk(sk), nil
}

// deriveKeyPair draws the key generation seed from rd,
// so that tests can substitute the entropy source.
func deriveKeyPair(scheme kemScheme, rd io.Reader) ([]byte, []byte, error) {
	seed := make([]byte, scheme.SeedSize())
	if err := readFull(rd, seed); err != nil {
		return nil, nil, fmt.Errorf("failed to read seed: %w", err)
	}

	pk, sk := scheme.DeriveKeyPair(seed)
	clear(seed)

	pkb, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}

	skb, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}

	return pkb, skb, nil
}

// kemEncapsulate is deterministic in seed.
func kemEncapsulate(scheme kemScheme, pk, seed []byte) (ct, ss []byte, err error) {
	cpk, err := scheme.UnmarshalBinaryPublicKey(pk)
	if err != nil {
		return nil, nil, err
	}

	return scheme.EncapsulateDeterministically(cpk, seed)
}

func kemDecapsulate(scheme kemScheme, sk, ct []byte) ([]byte, error) {
	csk, err := scheme.UnmarshalBinaryPrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecapsulation, err)
	}

	ss, err := scheme.Decapsulate(csk, ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecapsulation, err)
	}

	return ss, nil
}
