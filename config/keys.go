// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	pqwg "cunicu.li/go-pqwg"
)

// Static keys are stored in their raw binary form.
// Symmetric keys are stored base64-encoded.

func ReadKeyFile(fn string) (pqwg.Key, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return pqwg.Key{}, err
	}

	k, err := pqwg.ParseKey(string(buf))
	if err != nil {
		return pqwg.Key{}, fmt.Errorf("failed to parse key %s: %w", fn, err)
	}

	return k, nil
}

func WriteKeyFile(fn string, k pqwg.Key) error {
	return os.WriteFile(fn, []byte(k.String()+"\n"), 0o600)
}

func readStaticKeyFile(fn string) ([]byte, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	} else if len(buf) == 0 {
		return nil, fmt.Errorf("empty key file: %s", fn)
	}

	return buf, nil
}
