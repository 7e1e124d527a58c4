// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

// Handler is one of the supported handlers declared below.
type Handler any

type HandshakeCompletedHandler interface {
	HandshakeCompleted(PeerID, Key)
}

type HandshakeExpiredHandler interface {
	HandshakeExpired(PeerID)
}
