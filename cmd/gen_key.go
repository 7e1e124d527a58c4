// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	pqwg "cunicu.li/go-pqwg"
	"cunicu.li/go-pqwg/config"

	"github.com/spf13/cobra"
)

var errEitherConfigOrKeys = errors.New("either a config-file or both public-key and secret-key file are required")

func genKeyIntf(_ *cobra.Command, args []string) error {
	intfName := args[0]

	dir := filepath.Join(config.WireGuardConfigDir, intfName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to generate directory: %w", err)
	}

	pkPath := filepath.Join(dir, "pqpk")
	skPath := filepath.Join(dir, "pqsk")

	return doGenKeys(pkPath, skPath)
}

func genKey(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfgFilename := args[0]
		cfgFile := config.File{}

		if err := cfgFile.LoadFile(cfgFilename); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}

		pkPath = cfgFile.PublicKey
		skPath = cfgFile.SecretKey
	}

	if pkPath == "" || skPath == "" {
		return errEitherConfigOrKeys
	}

	return doGenKeys(pkPath, skPath)
}

func doGenKeys(pkPath, skPath string) error {
	if err := checkOverwrite(pkPath); err != nil {
		return err
	}

	if err := checkOverwrite(skPath); err != nil {
		return err
	}

	spk, ssk, err := pqwg.GenerateKeyPair()
	if err != nil {
		return err
	}

	if err := os.WriteFile(pkPath, spk, 0o644); err != nil {
		return fmt.Errorf("failed to write static public key: %w", err)
	}

	if err := os.WriteFile(skPath, ssk, 0o600); err != nil {
		return fmt.Errorf("failed to write static secret key: %w", err)
	}

	return nil
}

func genPSK(_ *cobra.Command, args []string) error {
	pskPath := args[0]

	if err := checkOverwrite(pskPath); err != nil {
		return err
	}

	psk, err := pqwg.GeneratePresharedKey()
	if err != nil {
		return err
	}

	if err := config.WriteKeyFile(pskPath, psk); err != nil {
		return fmt.Errorf("failed to write pre-shared key: %w", err)
	}

	return nil
}

func checkOverwrite(fn string) error {
	if _, err := os.Stat(fn); err == nil && !force {
		return fmt.Errorf("file \"%s\" exists, refusing to overwrite it", fn)
	}

	return nil
}
