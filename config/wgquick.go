// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	pqwg "cunicu.li/go-pqwg"

	"gopkg.in/ini.v1"
)

// FromWireGuardQuickConfig builds a configuration from a wg-quick(8) file.
// The interface name is derived from the file name.
// Key files are looked up in WireGuardConfigDir as for FromWireGuardInterface.
func FromWireGuardQuickConfig(fn string) (cfgFile File, err error) {
	intfName := strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn))

	wq, err := ini.LoadSources(ini.LoadOptions{
		AllowNonUniqueSections: true,
		IgnoreInlineComment:    true,
	}, fn)
	if err != nil {
		return cfgFile, fmt.Errorf("failed to load %s: %w", fn, err)
	}

	intf, err := wq.GetSection("Interface")
	if err != nil {
		return cfgFile, fmt.Errorf("missing [Interface] section: %w", err)
	}

	var listenPort int
	if k, err := intf.GetKey("ListenPort"); err == nil {
		if listenPort, err = k.Int(); err != nil {
			return cfgFile, fmt.Errorf("invalid listen port: %w", err)
		}
	}

	dir := filepath.Join(WireGuardConfigDir, intfName)

	if cfgFile, err = newWireGuardFile(dir, listenPort); err != nil {
		return cfgFile, err
	}

	peers, err := wq.SectionsByName("Peer")
	if err != nil {
		// No peers
		return cfgFile, nil //nolint:nilerr
	}

	for _, sec := range peers {
		pk, err := pqwg.ParseKey(sec.Key("PublicKey").String())
		if err != nil {
			return cfgFile, fmt.Errorf("invalid peer public key: %w", err)
		}

		var ep *string
		if s := sec.Key("Endpoint").String(); s != "" {
			host, portStr, err := net.SplitHostPort(s)
			if err != nil {
				return cfgFile, fmt.Errorf("invalid endpoint: %w", err)
			}

			port, err := strconv.Atoi(portStr)
			if err != nil {
				return cfgFile, fmt.Errorf("invalid endpoint port: %w", err)
			}

			e := exchangeEndpoint(host, port)
			ep = &e
		}

		if ps, ok := newWireGuardPeerSection(dir, intfName, pk, ep); ok {
			cfgFile.Peers = append(cfgFile.Peers, ps)
		}
	}

	return cfgFile, nil
}
