// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import "errors"

// Handshake errors. All of them result in the offending message being
// dropped. None of them is ever reported back to the remote peer.
var (
	ErrDecapsulation  = errors.New("decapsulation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrReplay         = errors.New("detected replay")
	ErrFormat         = errors.New("malformed payload")
)

var (
	ErrPeerNotFound      = errors.New("peer not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnexpectedMsgType = errors.New("received unexpected message type")
	ErrInvalidMsgType    = errors.New("invalid message type")
	ErrMissingEndpoint   = errors.New("missing endpoint")
	ErrMissingPublicKey  = errors.New("missing public key")
	ErrMissingSecretKey  = errors.New("missing secret key")
	ErrServerClosed      = errors.New("server closed")
	ErrStaleCounter      = errors.New("stale counter")

	errMsgTruncated = errors.New("message is truncated")
	errInvalidLen   = errors.New("invalid message length")
	errInvalidMAC   = errors.New("invalid mac")
	errPartialRead  = errors.New("partial read")
)
