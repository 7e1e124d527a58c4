// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"crypto/subtle"
)

type Payload interface {
	MarshalBinary(buf []byte) []byte
	UnmarshalBinary(buf []byte) (int, error)
}

// envelope frames a payload for the wire.
// The two MAC fields are opaque to the handshake: mac is a cheap
// filter keyed by the receiver's public key, cookie is always zero.
type envelope struct {
	typ     msgType // Type of this message
	payload Payload // The actual payload
	mac     mac     // Message authentication code over all bytes until (exclusive) mac itself
	cookie  cookie  // Carried but never interpreted
}

// macKey is the key for the envelope mac addressed to the holder of spkt.
func macKey(spkt spk) key {
	return lhash(lblMac, spkt)
}

func (e *envelope) MarshalBinaryAndSeal(mk key, buf []byte) []byte {
	buf = e.MarshalBinary(buf)

	macOffset := len(buf) - macSize - cookieSize
	m := mk.hash(buf[:macOffset])

	copy(buf[macOffset:], m[:macSize])

	return buf
}

func (e *envelope) CheckAndUnmarshalBinary(buf []byte, mk key) (int, error) {
	if len(buf) < envelopeSize {
		return -1, errMsgTruncated
	}

	macOffset := len(buf) - macSize - cookieSize
	macWire := buf[macOffset : macOffset+macSize]
	macCalc := mk.hash(buf[:macOffset])

	if subtle.ConstantTimeCompare(macWire, macCalc[:macSize]) != 1 {
		return -1, errInvalidMAC
	}

	return e.UnmarshalBinary(buf)
}

func (e *envelope) MarshalBinary(buf []byte) []byte {
	e.typ = msgTypeFromPayload(e.payload)

	buf = append(buf, uint8(e.typ), 0, 0, 0)
	buf = e.payload.MarshalBinary(buf)

	return concat(buf,
		e.mac[:],
		e.cookie[:])
}

func (e *envelope) UnmarshalBinary(buf []byte) (o int, err error) {
	lenPayload := len(buf) - envelopeSize
	if lenPayload <= 0 {
		return -1, errMsgTruncated
	}

	e.typ = msgType(buf[0])

	switch e.typ {
	case msgTypeInit:
		e.payload = &initMsg{}
	case msgTypeResp:
		e.payload = &respMsg{}
	case msgTypeConfirm:
		e.payload = &confirmMsg{}
	case msgTypeComplete:
		e.payload = &completeMsg{}
	default:
		return -1, ErrInvalidMsgType
	}

	o += 4

	p, err := e.payload.UnmarshalBinary(buf[o : o+lenPayload])
	if err != nil {
		return -1, err
	}

	o += p
	o += copy(e.mac[:], buf[o:])
	o += copy(e.cookie[:], buf[o:])

	return o, nil
}

// initMsg is sent by the initiator to start a handshake.
type initMsg struct {
	sidi  sid             // Randomly generated session id of the initiator
	sctr  sct             // Classic McEliece cipher text to the responder's static key
	epki  epk             // Kyber512 ephemeral public key
	astat [astatSize]byte // Encrypted peer id of the initiator
	ats   [atsSize]byte   // Encrypted TAI64N time stamp (against replay attacks)
}

func (m *initMsg) MarshalBinary(buf []byte) []byte {
	return concat(buf,
		m.sidi[:],
		m.sctr,
		m.epki,
		m.astat[:],
		m.ats[:])
}

func (m *initMsg) UnmarshalBinary(buf []byte) (o int, err error) {
	if len(buf) != initMsgSize {
		return -1, errInvalidLen
	}

	o += copy(m.sidi[:], buf[o:])

	m.sctr = sct(clone(buf[o : o+sctSize]))
	o += sctSize
	m.epki = epk(clone(buf[o : o+epkSize]))
	o += epkSize

	o += copy(m.astat[:], buf[o:])
	o += copy(m.ats[:], buf[o:])

	return o, nil
}

// respMsg is the responder's answer to an initMsg.
type respMsg struct {
	sidi  sid     // Copied from Init
	sidr  sid     // Randomly generated session id of the responder
	scti  sct     // Classic McEliece cipher text to the initiator's static key
	ecti  ect     // Kyber512 cipher text to the initiator's ephemeral key
	aempt authTag // Empty encrypted message (just an auth tag)
}

func (m *respMsg) MarshalBinary(buf []byte) []byte {
	return concat(buf,
		m.sidi[:],
		m.sidr[:],
		m.scti,
		m.ecti,
		m.aempt[:])
}

func (m *respMsg) UnmarshalBinary(buf []byte) (o int, err error) {
	if len(buf) != respMsgSize {
		return -1, errInvalidLen
	}

	o += copy(m.sidi[:], buf[o:])
	o += copy(m.sidr[:], buf[o:])

	m.scti = sct(clone(buf[o : o+sctSize]))
	o += sctSize
	m.ecti = ect(clone(buf[o : o+ectSize]))
	o += ectSize

	o += copy(m.aempt[:], buf[o:])

	return o, nil
}

// confirmMsg finishes the handshake on the initiator side.
type confirmMsg struct {
	sidi  sid     // Copied from Init
	sidr  sid     // Copied from Resp
	aconf authTag // Empty encrypted message (just an auth tag)
}

func (m *confirmMsg) MarshalBinary(buf []byte) []byte {
	return concat(buf,
		m.sidi[:],
		m.sidr[:],
		m.aconf[:])
}

func (m *confirmMsg) UnmarshalBinary(buf []byte) (o int, err error) {
	if len(buf) != confirmMsgSize {
		return -1, errInvalidLen
	}

	o += copy(m.sidi[:], buf[o:])
	o += copy(m.sidr[:], buf[o:])
	o += copy(m.aconf[:], buf[o:])

	return o, nil
}

// completeMsg acknowledges a confirmMsg under the responder's transport key.
type completeMsg struct {
	sidi sid           // Copied from Init
	ctr  [ctrSize]byte // Transport counter
	auth authTag       // Empty encrypted message (just an auth tag)
}

func (m *completeMsg) MarshalBinary(buf []byte) []byte {
	return concat(buf,
		m.sidi[:],
		m.ctr[:],
		m.auth[:])
}

func (m *completeMsg) UnmarshalBinary(buf []byte) (o int, err error) {
	if len(buf) != completeMsgSize {
		return -1, errInvalidLen
	}

	o += copy(m.sidi[:], buf[o:])
	o += copy(m.ctr[:], buf[o:])
	o += copy(m.auth[:], buf[o:])

	return o, nil
}

func concat(buf []byte, parts ...[]byte) []byte {
	for _, part := range parts {
		buf = append(buf, part...)
	}

	return buf
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}
