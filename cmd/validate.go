// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	pqwg "cunicu.li/go-pqwg"
	"cunicu.li/go-pqwg/config"

	"github.com/spf13/cobra"
)

func validate(_ *cobra.Command, args []string) error {
	failed := 0
	for _, cfgFilename := range args {
		logger := slog.With(slog.String("file", cfgFilename))

		if err := validateFile(cfgFilename); err != nil {
			failed++
			logger.Error("Invalid configuration", slog.Any("error", err))
		} else {
			logger.Info("Valid configuration")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d configurations are invalid", failed, len(args))
	}

	return nil
}

func validateFile(fn string) error {
	cfgFile := config.File{}

	if err := cfgFile.LoadFile(fn); err != nil {
		return fmt.Errorf("failed to load: %w", err)
	}

	cfg, err := cfgFile.ToConfig()
	if err != nil {
		return fmt.Errorf("failed to parse: %w", err)
	}

	pids := map[pqwg.PeerID]int{}
	for i, pc := range cfg.Peers {
		pid := pc.PID()
		if j, ok := pids[pid]; ok {
			return fmt.Errorf("peers %d and %d share the same public key", j, i)
		}

		pids[pid] = i
	}

	return nil
}
