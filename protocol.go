// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

// Constant keys of the key schedule.
var (
	hashProtocol = hash(key{}, lblProtocol)

	ckInit = lhash(lblChainingKeyInit)
	hInit  = lhash(lblTranscriptHashInit)
)
