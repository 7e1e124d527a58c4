// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var (
	skPath, pkPath, configFile string
	intfName, wgQuickFile      string
	verbose, force             bool

	logLevel = new(slog.LevelVar)

	genManOpts = &doc.GenManTreeOptions{
		Header: &doc.GenManHeader{
			Title:   "PQWG",
			Section: "1",
			Source:  "https://cunicu.li/go-pqwg",
		},
		Path:             "./docs/man",
		CommandSeparator: "-",
	}

	rootCmd = &cobra.Command{
		Use:              "pqwg",
		Short:            "Post-quantum pre-shared key exchange for WireGuard",
		PersistentPreRun: setupLogging,
		SilenceUsage:     true,
	}
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	validateCmd := &cobra.Command{
		Use:   "validate config-file...",
		Short: "Validate configuration files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  validate,
	}

	genKeyCmd := &cobra.Command{
		Use:   "gen-keys [config-file]",
		Short: "Generate a keypair to use in the exchange command later.",
		Long:  "Send the public-key file to your communication partner and keep the secret-key file a secret!",
		Args:  cobra.MaximumNArgs(1),
		RunE:  genKey,
	}

	f := genKeyCmd.PersistentFlags()
	f.StringVarP(&pkPath, "public-key", "p", "", "where to write public-key to")
	f.StringVarP(&skPath, "secret-key", "s", "", "where to write secret-key to")

	genKeyIntfCmd := &cobra.Command{
		Use:   "gen-keys-intf interface",
		Short: "Generate a keypair for a WireGuard interface.",
		Long:  "The keys are stored in the configuration directory of the interface below /etc/wireguard.",
		Args:  cobra.ExactArgs(1),
		RunE:  genKeyIntf,
	}

	genPSKCmd := &cobra.Command{
		Use:   "gen-psk file",
		Short: "Generate a pre-shared key.",
		Long:  "The key needs to be shared with the peer over a secure channel.",
		Args:  cobra.ExactArgs(1),
		RunE:  genPSK,
	}

	genConfigCmd := &cobra.Command{
		Use:   "gen-config config-file",
		Short: "Generate a configuration file",
		Long:  "Generates an example configuration or derives one from a WireGuard interface or wg-quick configuration.",
		Args:  cobra.ExactArgs(1),
		RunE:  genConfig,
	}

	f = genConfigCmd.PersistentFlags()
	f.StringVarP(&intfName, "interface", "i", "", "derive the configuration from a running WireGuard interface")
	f.StringVarP(&wgQuickFile, "wg-quick", "w", "", "derive the configuration from a wg-quick configuration file")

	exchangeConfigCmd := &cobra.Command{
		Use:   "exchange-config config-file",
		Short: "Start in server mode and carry on with the key exchange",
		Long:  "This will parse the configuration file and perform the key exchange with the specified peers. If a peer's endpoint is specified, this instance will try to initiate a key exchange with the peer, otherwise only initiation attempts from the peer will be responded to.",
		Args:  cobra.ExactArgs(1),
		RunE:  exchangeConfig,
	}

	exchangeCmd := &cobra.Command{
		Use:                "exchange public-key <PATH> secret-key <PATH> [prf-key <PATH>] [preshared-key <PATH>] [listen <ADDR>:<PORT>]... [handshake-timeout <DURATION>] [verbose] [peer public-key <PATH> [endpoint <ADDR>:<PORT>] [preshared-key <PATH>] [psk-mode <MODE>] [outfile <PATH>] [wireguard <DEV> <PEER>]]...",
		Short:              "Start in server mode and carry on with the key exchange",
		Long:               "This will parse the arguments and perform the key exchange with the specified peers. If a peer's endpoint is specified, this instance will try to initiate a key exchange with the peer, otherwise only initiation attempts from the peer will be responded to.",
		DisableFlagParsing: true,
		RunE:               exchange,
	}

	genManCmd := &cobra.Command{
		Use:    "man",
		Short:  "Generate manpages",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE:   genMan,
	}

	f = genManCmd.PersistentFlags()
	f.StringVarP(&genManOpts.Path, "path", "p", genManOpts.Path, "where to write the manpages to")

	f = exchangeConfigCmd.PersistentFlags()
	f.StringVarP(&configFile, "config-file", "c", "", "Save the effective configuration to a file before starting the daemon")

	f = rootCmd.PersistentFlags()
	f.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	f.BoolVarP(&force, "force", "f", false, "overwrite existing files")

	rootCmd.AddCommand(genKeyCmd)
	rootCmd.AddCommand(genKeyIntfCmd)
	rootCmd.AddCommand(genPSKCmd)
	rootCmd.AddCommand(genConfigCmd)
	rootCmd.AddCommand(exchangeConfigCmd)
	rootCmd.AddCommand(exchangeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(genManCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Error", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupLogging(_ *cobra.Command, _ []string) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
}
