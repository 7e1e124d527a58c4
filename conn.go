// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

type Endpoint interface {
	String() string
	Equal(Endpoint) bool
}

// ReceiveFunc blocks until the next envelope arrives.
// Envelopes whose mac does not match mk are rejected.
type ReceiveFunc func(mk key, buf []byte) (Payload, Endpoint, error)

type Conn interface {
	Close() error
	Open() ([]ReceiveFunc, error)
	Send(pl Payload, mk key, ep Endpoint) error
}
