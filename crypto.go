// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	hashpkg "hash"
	"io"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
)

// GenerateKeyPair generates a new static key pair.
func GenerateKeyPair() (PublicKey, SecretKey, error) {
	return generateStaticKeyPair(rand.Reader)
}

// GeneratePresharedKey generates a new random pre-shared key.
func GeneratePresharedKey() (Key, error) {
	return generateKey(rand.Reader)
}

// GeneratePRFKey generates a new random secret for the PRF trick.
func GeneratePRFKey() (Key, error) {
	return generateKey(rand.Reader)
}

func newBlake2s() hashpkg.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

// A keyed hash function with one 32-byte input, one variable-size input, and one 32-byte output.
// As keyed hash function we use the HMAC construction with BLAKE2s as the inner hash function.
func hash(k key, data []byte, more ...[]byte) key {
	mac := hmac.New(newBlake2s, k[:])

	mac.Write(data)

	h := key(mac.Sum(nil))

	if len(more) == 0 {
		return h
	}

	return hash(h, more[0], more[1:]...)
}

func lhash(data []byte, more ...[]byte) key {
	return hash(hashProtocol, data, more...)
}

func (k key) hash(data []byte, more ...[]byte) key {
	return hash(k, data, more...)
}

// mix combines a digest with further data under a domain separation label.
func (k key) mix(data ...[]byte) key {
	for _, d := range data {
		k = k.hash(lblMix).hash(d)
	}

	return k
}

func (k *key) erase() {
	clear(k[:])
}

// aeadSeal encrypts pt under a single-use key.
// The nonce is always zero, hence k must never be used for a second seal.
func aeadSeal(k key, pt, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return nil, err
	}

	n := nonce{}

	return aead.Seal(nil, n[:], pt, ad), nil
}

func aeadOpen(k key, ct, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return nil, err
	}

	n := nonce{}

	pt, err := aead.Open(nil, n[:], ct, ad)
	if err != nil {
		return nil, ErrAuthentication
	}

	return pt, nil
}

// aeadSealCounter encrypts pt with a transport key under a counter nonce.
func aeadSealCounter(k key, ctr uint64, pt []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return nil, err
	}

	n := nonce{}
	binary.LittleEndian.PutUint64(n[4:], ctr)

	return aead.Seal(nil, n[:], pt, nil), nil
}

func aeadOpenCounter(k key, ctr uint64, ct []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return nil, err
	}

	n := nonce{}
	binary.LittleEndian.PutUint64(n[4:], ctr)

	pt, err := aead.Open(nil, n[:], ct, nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	return pt, nil
}

func readFull(rd io.Reader, buf []byte) error {
	if n, err := io.ReadFull(rd, buf); err != nil {
		return err
	} else if n != len(buf) {
		return errPartialRead
	}

	return nil
}

func generateKey(rd io.Reader) (k Key, err error) {
	err = readFull(rd, k[:])
	return k, err
}

func generateSessionID(rd io.Reader) (s sid, err error) {
	err = readFull(rd, s[:])
	return s, err
}
