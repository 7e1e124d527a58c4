// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

// chain is the running key schedule of a handshake.
// Both roles perform the same sequence of operations on it.
type chain struct {
	ck key // The chaining key
	h  key // The transcript hash
}

// newChain binds the chain to the responder's static public key.
func newChain(spkr spk) chain {
	return chain{
		ck: ckInit,
		h:  hInit.mix(spkr),
	}
}

// bindEphemeral mixes the initiator's ephemeral public key
// into both the chaining key and the transcript.
func (c *chain) bindEphemeral(epki epk) {
	c.ck = c.ck.mix(epki)
	c.h = c.h.mix(epki)
}

func (c *chain) mixHash(fields ...[]byte) {
	c.h = c.h.mix(fields...)
}

// mixKey absorbs secret material into the chaining key and returns a
// fresh key for exactly one AEAD operation.
func (c *chain) mixKey(secret ...[]byte) key {
	base := c.ck
	if len(secret) > 0 {
		base = hash(c.ck, secret[0], secret[1:]...)
	}

	c.ck = base.hash(lblChainingKey)

	return base.hash(lblHandshakeEncryption)
}

// seal encrypts pt with the transcript hash as associated data
// and then mixes the cipher text into the transcript.
func (c *chain) seal(k key, pt []byte) ([]byte, error) {
	ct, err := aeadSeal(k, pt, c.h[:])
	if err != nil {
		return nil, err
	}

	c.mixHash(ct)

	return ct, nil
}

func (c *chain) open(k key, ct []byte) ([]byte, error) {
	pt, err := aeadOpen(k, ct, c.h[:])
	if err != nil {
		return nil, err
	}

	c.mixHash(ct)

	return pt, nil
}

// encapAndMix encapsulates a secret to pk and mixes pk, the shared secret
// and the cipher text into the chain.
func (c *chain) encapAndMix(e *encapsulator, scheme kemScheme, pk []byte) ([]byte, key, error) {
	ct, ss, err := e.encapsulate(scheme, pk)
	if err != nil {
		return nil, key{}, err
	}

	defer clear(ss)

	c.mixHash(ct)

	return ct, c.mixKey(pk, ss, ct), nil
}

func (c *chain) decapAndMix(scheme kemScheme, sk, pk, ct []byte) (key, error) {
	ss, err := kemDecapsulate(scheme, sk, ct)
	if err != nil {
		return key{}, err
	}

	defer clear(ss)

	c.mixHash(ct)

	return c.mixKey(pk, ss, ct), nil
}

// confirmationKey is the key for the final confirmation tag.
func (c *chain) confirmationKey() key {
	return c.ck.hash(lblHandshakeConfirm)
}

// transportKeys derives the key material of a finished handshake.
func (c *chain) transportKeys() (txki, txkr, osk key) {
	base := hash(c.ck, c.h[:])
	defer base.erase()

	return base.hash(lblInitiatorTransport),
		base.hash(lblResponderTransport),
		base.hash(lblOutputSharedKey)
}

func (c *chain) erase() {
	c.ck.erase()
	c.h.erase()
}
