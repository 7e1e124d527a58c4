// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Server struct {
	local    *identity
	handlers []Handler
	timeout  time.Duration

	conn      Conn
	closeConn bool
	closed    atomic.Bool

	receivers errgroup.Group

	logger *slog.Logger
}

func NewUDPServer(cfg Config) (*Server, error) {
	if len(cfg.ListenAddrs) == 0 {
		// Listen on random port on all interfaces by default
		cfg.ListenAddrs = append(cfg.ListenAddrs, &net.UDPAddr{})
	}

	var err error
	if cfg.Conn, err = NewUDPConn(cfg.ListenAddrs); err != nil {
		return nil, err
	}

	// Server.Close() should also close the connection
	cfg.closeConn = true

	return NewServer(cfg)
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.PublicKey == nil {
		return nil, ErrMissingPublicKey
	} else if len(cfg.PublicKey) != spkSize {
		return nil, fmt.Errorf("%w: invalid public key length %d", ErrFormat, len(cfg.PublicKey))
	}

	if cfg.SecretKey == nil {
		return nil, ErrMissingSecretKey
	} else if len(cfg.SecretKey) != sskSize {
		return nil, fmt.Errorf("%w: invalid secret key length %d", ErrFormat, len(cfg.SecretKey))
	}

	if cfg.Entropy == nil {
		cfg.Entropy = rand.Reader
	}

	if cfg.PRFKey.IsZero() {
		var err error
		if cfg.PRFKey, err = generateKey(cfg.Entropy); err != nil {
			return nil, fmt.Errorf("failed to generate prf key: %w", err)
		}
	}

	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = RejectAfterTime
	}

	s := &Server{
		local:    newIdentity(cfg.PublicKey, cfg.SecretKey, key(cfg.PRFKey), cfg.Entropy),
		handlers: cfg.Handlers,
		timeout:  cfg.HandshakeTimeout,

		conn:      cfg.Conn,
		closeConn: cfg.closeConn,

		logger: cfg.Logger,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.logger.Debug("Loaded static key", slog.Any("pid", s.local.pidm))

	for _, pCfg := range cfg.Peers {
		p, err := newPeer(pCfg, Key(cfg.PresharedKey), s.logger)
		if err != nil {
			return nil, fmt.Errorf("invalid peer: %w", err)
		}

		if _, ok := s.local.peers[p.pid]; ok {
			return nil, fmt.Errorf("duplicate peer: %s", p.pid)
		}

		s.local.peers[p.pid] = p

		p.logger.Debug("Added peer", slog.String("psk_mode", p.pskMode.String()))
	}

	if s.conn == nil {
		return nil, errors.New("missing connection")
	}

	recvFncs, err := s.conn.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open listeners: %w", err)
	}

	mk := macKey(s.local.spkm)
	for _, recvFnc := range recvFncs {
		s.receivers.Go(func() error {
			return s.receiveLoop(recvFnc, mk)
		})
	}

	return s, nil
}

func (s *Server) PID() PeerID {
	return s.local.pidm
}

// Run initiates a handshake with every peer which has a known endpoint.
// Peers without endpoint are only responded to.
func (s *Server) Run() error {
	for _, p := range s.local.peers {
		s.initiateHandshake(p)
	}

	return nil
}

// Initiate starts a new handshake with the peer identified by pid.
// An ongoing handshake with the same peer is replaced.
func (s *Server) Initiate(pid PeerID) error {
	p, ok := s.local.peers[pid]
	if !ok {
		return ErrPeerNotFound
	}

	return s.initiate(p)
}

func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, p := range s.local.peers {
		p.stopRekey()
	}

	for _, hs := range s.local.sessions.all() {
		hs.lock.Lock()
		hs.expiryTimer.Stop()
		s.local.sessions.remove(hs)
		hs.erase()
		hs.lock.Unlock()
	}

	if s.closeConn {
		if err := s.conn.Close(); err != nil {
			return err
		}

		if err := s.receivers.Wait(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) receiveLoop(recvFnc ReceiveFunc, mk key) error {
	buf := make([]byte, maxEnvelopeSize)

	for {
		pl, from, err := recvFnc(mk, buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.logger.Debug("Dropped message", slog.Any("error", err))
			continue
		}

		if err := s.handle(pl, from); err != nil {
			s.logger.Debug("Dropped message",
				slog.String("type", msgTypeFromPayload(pl).String()),
				slog.Any("from", from),
				slog.Any("error", err))
		}
	}
}

// handle processes a single message. All errors are silent drops
// and never answered.
func (s *Server) handle(pl Payload, from Endpoint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()

	mTyp := msgTypeFromPayload(pl)

	s.logger.Debug("Handling message", slog.String("type", mTyp.String()))

	switch req := pl.(type) {
	case *initMsg:
		hs := newHandshake(s.local, responder)

		m, err := hs.resp(req)
		if err != nil {
			return err
		}

		s.addHandshake(hs)

		return s.send(m, hs.peer, from)

	case *respMsg:
		hs, err := s.lookupHandshake(req.sidi, initiator, stateAwaitingResponse)
		if err != nil {
			return err
		}
		defer hs.lock.Unlock()

		m, err := hs.confirm(req)
		if err != nil {
			return err
		}

		return s.send(m, hs.peer, from)

	case *confirmMsg:
		hs, err := s.lookupHandshake(req.sidr, responder, stateKeyUnconfirmed)
		if err != nil {
			return err
		}
		defer hs.lock.Unlock()

		m, err := hs.complete(req)
		if err != nil {
			return err
		}

		s.completeHandshake(hs, from)

		return s.send(m, hs.peer, from)

	case *completeMsg:
		hs, err := s.lookupHandshake(req.sidi, initiator, stateTransport)
		if err != nil {
			return err
		}
		defer hs.lock.Unlock()

		if err := hs.handleComplete(req); err != nil {
			return err
		}

		s.completeHandshake(hs, from)

	default:
		return ErrInvalidMsgType
	}

	return nil
}

// lookupHandshake returns the locked handshake for the local session id.
func (s *Server) lookupHandshake(id sid, r role, st state) (*handshake, error) {
	hs, ok := s.local.sessions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	hs.lock.Lock()

	if hs.role != r || hs.state != st {
		hs.lock.Unlock()
		return nil, fmt.Errorf("%w: %s in state %s", ErrUnexpectedMsgType, hs.role, hs.state)
	}

	return hs, nil
}

func (s *Server) send(pl Payload, p *peer, ep Endpoint) error {
	if ep == nil {
		return ErrMissingEndpoint
	}

	if err := s.conn.Send(pl, p.macKey, ep); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	return nil
}

// addHandshake stores hs and discards the handshake it replaces.
func (s *Server) addHandshake(hs *handshake) {
	hs.expiryTimer = time.AfterFunc(s.timeout, func() {
		s.expireHandshake(hs)
	})

	if old := s.local.sessions.put(hs); old != nil {
		old.lock.Lock()
		old.expiryTimer.Stop()
		old.erase()
		old.lock.Unlock()

		hs.logger().Debug("Replaced handshake",
			slog.String("role", old.role.String()),
			slog.String("sid", old.localSessionID().String()))
	}
}

func (s *Server) initiateHandshake(p *peer) {
	if err := s.initiate(p); err != nil {
		if errors.Is(err, ErrMissingEndpoint) {
			p.logger.Debug("Skipping handshake due to missing endpoint")
		} else if !errors.Is(err, ErrServerClosed) {
			p.logger.Error("Failed to initiate handshake for peer", slog.Any("error", err))
		}
	}
}

func (s *Server) initiate(p *peer) error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	ep := p.currentEndpoint()
	if ep == nil {
		return ErrMissingEndpoint
	}

	hs := newHandshake(s.local, initiator)
	hs.peer = p

	m, err := hs.sendInit()
	if err != nil {
		return err
	}

	s.addHandshake(hs)

	return s.send(m, p, ep)
}

// completeHandshake reports the output key of an exchanged handshake
// and removes it from the session store. The caller holds hs.lock.
func (s *Server) completeHandshake(hs *handshake, ep Endpoint) {
	p := hs.peer

	hs.expiryTimer.Stop()
	s.local.sessions.remove(hs)

	p.logger.Debug("Exchanged key with peer", slog.String("role", hs.role.String()))

	p.learnEndpoint(ep)

	osk := Key(hs.osk)
	hs.erase()

	for _, h := range s.handlers {
		if h, ok := h.(HandshakeCompletedHandler); ok {
			go h.HandshakeCompleted(p.pid, osk)
		}
	}

	if hs.role == initiator {
		p.logger.Debug("Rekey", slog.Duration("after", RekeyAfterTime))

		p.scheduleRekey(RekeyAfterTime, func() {
			s.initiateHandshake(p)
		})
	}
}

func (s *Server) expireHandshake(hs *handshake) {
	hs.lock.Lock()
	defer hs.lock.Unlock()

	if !s.local.sessions.remove(hs) {
		return
	}

	hs.erase()

	hs.logger().Debug("Erased expired handshake",
		slog.String("role", hs.role.String()),
		slog.String("state", hs.state.String()))

	if hs.role != initiator {
		return
	}

	p := hs.peer

	for _, h := range s.handlers {
		if h, ok := h.(HandshakeExpiredHandler); ok {
			go h.HandshakeExpired(p.pid)
		}
	}

	// Try again, as the initiator is the only one driving the exchange
	p.logger.Debug("Retry", slog.Duration("after", s.timeout))

	p.scheduleRekey(s.timeout, func() {
		s.initiateHandshake(p)
	})
}
