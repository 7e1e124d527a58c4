// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg_test

import (
	"testing"

	pqwg "cunicu.li/go-pqwg"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require := require.New(t)

	var k1, k2 pqwg.Key

	k1, err := pqwg.GeneratePresharedKey()
	require.NoError(err)
	require.False(k1.IsZero())

	text, err := k1.MarshalText()
	require.NoError(err)

	err = k2.UnmarshalText(text)
	require.NoError(err)

	require.Equal(k1, k2)
	require.Equal(k2.String(), string(text))

	_, err = pqwg.ParseKey("dG9vIHNob3J0")
	require.ErrorIs(err, pqwg.ErrFormat)
}

func TestPeerID(t *testing.T) {
	require := require.New(t)

	pid1 := pqwg.PeerIDFromPublicKey(pqwg.PublicKey("a"))
	pid2 := pqwg.PeerIDFromPublicKey(pqwg.PublicKey("b"))
	require.NotEqual(pid1, pid2)

	pid3, err := pqwg.ParsePeerID(pid1.String())
	require.NoError(err)
	require.Equal(pid1, pid3)
}
