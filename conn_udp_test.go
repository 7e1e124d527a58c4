// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUDPConn(t *testing.T) {
	require := require.New(t)

	mk := macKey(PublicKey("receiver"))

	c, err := NewUDPConn([]*net.UDPAddr{
		{
			IP: net.IPv4(127, 0, 0, 1),
		},
	})
	require.NoError(err)

	recvFncs, err := c.Open()
	require.NoError(err)
	require.Len(recvFncs, 1)

	las := c.LocalAddrs()
	require.Len(las, 1)

	type received struct {
		pl  Payload
		err error
	}

	rcvd := make(chan received)
	go func() {
		buf := make([]byte, maxEnvelopeSize)
		pl, _, err := recvFncs[0](mk, buf)
		rcvd <- received{pl, err}
	}()

	pl := &completeMsg{
		sidi: sid{1, 2, 3, 4},
		ctr:  [ctrSize]byte{1},
	}

	err = c.Send(pl, mk, (*UDPEndpoint)(las[0]))
	require.NoError(err)

	r := <-rcvd
	require.NoError(r.err)
	require.Equal(pl, r.pl)

	err = c.Close()
	require.NoError(err)

	_, _, err = recvFncs[0](mk, make([]byte, maxEnvelopeSize))
	require.ErrorIs(err, net.ErrClosed)
}

func TestUDPEndpoint(t *testing.T) {
	require := require.New(t)

	ep1, err := NewUDPEndpoint("127.0.0.1:1234")
	require.NoError(err)

	ep2, err := NewUDPEndpoint("127.0.0.1:1234")
	require.NoError(err)

	ep3, err := NewUDPEndpoint("127.0.0.1:1235")
	require.NoError(err)

	require.True(ep1.Equal(ep2))
	require.False(ep1.Equal(ep3))
	require.Equal("127.0.0.1:1234", ep1.String())
}
