// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
)

var (
	errInvalidEndpoint = errors.New("invalid endpoint type")
	errPartialWrite    = errors.New("partial write")
)

type UDPEndpoint net.UDPAddr

func NewUDPEndpoint(s string) (*UDPEndpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return nil, err
	}

	return (*UDPEndpoint)(addr), nil
}

func (ep *UDPEndpoint) String() string {
	addr := (*net.UDPAddr)(ep)
	return addr.String()
}

func (ep *UDPEndpoint) Equal(o Endpoint) bool {
	ep2, ok := o.(*UDPEndpoint)
	if !ok {
		return false
	}

	return ep.IP.Equal(ep2.IP) && ep.Port == ep2.Port
}

type UDPConn struct {
	listenAddrs []*net.UDPAddr
	conns       map[string]*net.UDPConn
	connsLock   sync.RWMutex // Protects conns

	logger *slog.Logger
}

func NewUDPConn(la []*net.UDPAddr) (*UDPConn, error) {
	return &UDPConn{
		listenAddrs: la,
		conns:       map[string]*net.UDPConn{},
		logger:      slog.Default(),
	}, nil
}

// LocalAddrs returns the addresses of all open sockets.
func (c *UDPConn) LocalAddrs() (las []*net.UDPAddr) {
	c.connsLock.RLock()
	defer c.connsLock.RUnlock()

	for _, conn := range c.conns {
		if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			las = append(las, la)
		}
	}

	return las
}

func (c *UDPConn) Close() error {
	c.connsLock.RLock()
	defer c.connsLock.RUnlock()

	var errs []error
	for _, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *UDPConn) Send(pl Payload, mk key, ep Endpoint) error {
	uep, ok := ep.(*UDPEndpoint)
	if !ok {
		return errInvalidEndpoint
	}

	network := networkFromAddr((*net.UDPAddr)(uep))

	c.connsLock.RLock()
	conn, ok := c.conns[network]
	if !ok {
		conn, ok = c.conns["udp"] // Fallback
	}
	c.connsLock.RUnlock()

	if !ok {
		return fmt.Errorf("failed to find socket with matching address family: %s", network)
	}

	e := envelope{
		payload: pl,
	}

	buf := e.MarshalBinaryAndSeal(mk, make([]byte, 0, maxEnvelopeSize))
	if n, err := conn.WriteToUDP(buf, (*net.UDPAddr)(uep)); err != nil {
		return err
	} else if n != len(buf) {
		return errPartialWrite
	}

	return nil
}

// Open creates one socket per address family.
//
// On DragonFly BSD and OpenBSD an IPv6 socket does not receive
// IPv4 datagrams (see inet6(4)). Wildcard listen addresses are
// therefore split into separate udp4 and udp6 sockets there.
func (c *UDPConn) Open() ([]ReceiveFunc, error) {
	splitDualStack := runtime.GOOS == "dragonfly" || runtime.GOOS == "openbsd"
	networks := map[string]*net.UDPAddr{}

	for _, la := range c.listenAddrs {
		network := networkFromAddr(la)
		if network == "udp" && splitDualStack {
			networks["udp4"] = la
			networks["udp6"] = la
			continue
		}

		if la2, ok := networks[network]; ok {
			return nil, fmt.Errorf("already listening for %s on %s", network, la2)
		}

		networks[network] = la
	}

	recvFncs := []ReceiveFunc{}

	c.connsLock.Lock()
	defer c.connsLock.Unlock()

	for network, listenAddr := range networks {
		conn, err := net.ListenUDP(network, listenAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %w", err)
		}

		c.logger.Debug("Started listening", slog.Any("addr", conn.LocalAddr()))

		c.conns[network] = conn
		recvFncs = append(recvFncs, receiveFromConn(conn))
	}

	return recvFncs, nil
}

func networkFromAddr(a *net.UDPAddr) string {
	if a.IP == nil {
		return "udp"
	}

	if isIPv4 := a.IP.To4() != nil; isIPv4 {
		return "udp4"
	}

	return "udp6"
}

func receiveFromConn(conn *net.UDPConn) ReceiveFunc {
	return func(mk key, buf []byte) (Payload, Endpoint, error) {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read: %w", err)
		}

		e := &envelope{}
		if m, err := e.CheckAndUnmarshalBinary(buf[:n], mk); err != nil {
			return nil, nil, fmt.Errorf("received malformed packet: %w", err)
		} else if m != n {
			return nil, nil, errors.New("parsed partial packet")
		}

		return e.payload, (*UDPEndpoint)(from), nil
	}
}
