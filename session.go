// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"io"
	"sync"
)

type slot struct {
	pid  PeerID
	role role
}

// sessionStore maps locally generated session IDs to in-progress handshakes.
// Each pairing holds at most one handshake per role. Storing a new one
// replaces the previous without looking at its state.
type sessionStore struct {
	sessions map[sid]*handshake
	slots    map[slot]sid
	lock     sync.RWMutex // Protects sessions and slots
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: map[sid]*handshake{},
		slots:    map[slot]sid{},
	}
}

// newSessionID draws session IDs from rd until it finds one which is not in use.
func (s *sessionStore) newSessionID(rd io.Reader) (sid, error) {
	for {
		id, err := generateSessionID(rd)
		if err != nil {
			return sid{}, err
		}

		s.lock.RLock()
		_, used := s.sessions[id]
		s.lock.RUnlock()

		if !used {
			return id, nil
		}
	}
}

func (s *sessionStore) get(id sid) (*handshake, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	hs, ok := s.sessions[id]

	return hs, ok
}

// put stores hs and returns the handshake it displaced, if any.
func (s *sessionStore) put(hs *handshake) *handshake {
	sl := slot{hs.peer.pid, hs.role}
	id := hs.localSessionID()

	s.lock.Lock()
	defer s.lock.Unlock()

	var old *handshake
	if oldID, ok := s.slots[sl]; ok {
		old = s.sessions[oldID]
		delete(s.sessions, oldID)
	}

	s.sessions[id] = hs
	s.slots[sl] = id

	return old
}

// remove deletes hs if it is still the current handshake of its slot.
func (s *sessionStore) remove(hs *handshake) bool {
	sl := slot{hs.peer.pid, hs.role}
	id := hs.localSessionID()

	s.lock.Lock()
	defer s.lock.Unlock()

	if cur, ok := s.sessions[id]; !ok || cur != hs {
		return false
	}

	delete(s.sessions, id)

	if s.slots[sl] == id {
		delete(s.slots, sl)
	}

	return true
}

func (s *sessionStore) len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.sessions)
}

func (s *sessionStore) all() []*handshake {
	s.lock.RLock()
	defer s.lock.RUnlock()

	hss := make([]*handshake, 0, len(s.sessions))
	for _, hs := range s.sessions {
		hss = append(hss, hs)
	}

	return hss
}
