// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"cunicu.li/go-pqwg/config"

	"github.com/spf13/cobra"
)

func genConfig(_ *cobra.Command, args []string) (err error) {
	cfgFilename := args[0]

	if err := checkOverwrite(cfgFilename); err != nil {
		return err
	}

	var cfgFile config.File

	switch {
	case intfName != "":
		if cfgFile, err = config.FromWireGuardInterface(intfName); err != nil {
			return fmt.Errorf("failed to get config from interface: %w", err)
		}

	case wgQuickFile != "":
		if cfgFile, err = config.FromWireGuardQuickConfig(wgQuickFile); err != nil {
			return fmt.Errorf("failed to get config from wg-quick file: %w", err)
		}

	default:
		cfgFile = exampleConfig()
	}

	if err := cfgFile.DumpFile(cfgFilename); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote configuration with %d peers to %s\n", len(cfgFile.Peers), cfgFilename)

	return nil
}

func exampleConfig() config.File {
	ep := "my-peer.test:9999"
	ko := "pq-key-out"

	return config.File{
		PublicKey: "pq-public-key",
		SecretKey: "pq-secret-key",
		Listen:    []string{"0.0.0.0:9999"},
		Peers: []config.PeerSection{
			{
				PublicKey: "pq-peer-public-key",
				Endpoint:  &ep,
				KeyOut:    &ko,
				ExchangeCommand: []string{
					"wg",
					"set",
					"wg0",
					"peer",
					"<PEER_ID>",
					"preshared-key",
					"/dev/stdin",
				},
			},
		},
	}
}
