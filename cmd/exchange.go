// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	pqwg "cunicu.li/go-pqwg"
	"cunicu.li/go-pqwg/config"

	"github.com/spf13/cobra"
)

func exchange(cmd *cobra.Command, args []string) error {
	_, cfgFile, err := config.ConfigFromArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}

	return doExchange(cmd.Context(), cfgFile)
}

func exchangeConfig(cmd *cobra.Command, args []string) error {
	cfgFilename := args[0]
	cfgFile := config.File{}

	if err := cfgFile.LoadFile(cfgFilename); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if configFile != "" {
		if err := cfgFile.DumpFile(configFile); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	return doExchange(cmd.Context(), cfgFile)
}

func doExchange(ctx context.Context, cfgFile config.File) error {
	if cfgFile.Verbosity == "Verbose" {
		logLevel.Set(slog.LevelDebug)
	}

	cfg, err := cfgFile.ToConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Logger = slog.Default()

	svr, err := pqwg.NewUDPServer(cfg)
	if err != nil {
		return err
	}

	slog.Info("Started server", slog.Any("pid", svr.PID()))

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svr.Run(); err != nil {
		return err
	}

	<-ctx.Done()

	slog.Info("Shutting down")

	errs := []error{}
	if err := svr.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close server: %w", err))
	}

	for _, h := range cfg.Handlers {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close handler: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}
