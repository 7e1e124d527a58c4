// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// prfSeed derives encapsulation randomness from the long-lived prfKey and a
// fresh random value. The output stays unpredictable as long as prfKey is
// secret, even if the entropy source producing fresh is compromised.
func prfSeed(prfKey key, fresh []byte, size int) ([]byte, error) {
	seed := make([]byte, size)

	rd := hkdf.New(newBlake2s, fresh, prfKey[:], lblPRFTrick)
	if err := readFull(rd, seed); err != nil {
		return nil, err
	}

	return seed, nil
}

// encapsulator performs KEM encapsulations with PRF-trick seeds.
type encapsulator struct {
	prfKey  key
	entropy io.Reader
}

func (e *encapsulator) seed(size int) ([]byte, error) {
	fresh := make([]byte, freshRandomSize)
	if err := readFull(e.entropy, fresh); err != nil {
		return nil, fmt.Errorf("failed to read fresh randomness: %w", err)
	}

	defer clear(fresh)

	return prfSeed(e.prfKey, fresh, size)
}

func (e *encapsulator) encapsulate(scheme kemScheme, pk []byte) (ct, ss []byte, err error) {
	seed, err := e.seed(scheme.EncapsulationSeedSize())
	if err != nil {
		return nil, nil, err
	}

	defer clear(seed)

	return kemEncapsulate(scheme, pk, seed)
}
