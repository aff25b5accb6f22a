// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file and create the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path := config.BootstrapConfig(); path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", path)
			} else if p, err := config.DefaultConfigPath(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "config already present at %s\n", p)
			}

			// Opening the index creates the data directory and schema.
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "data directory ready at %s\n", a.cfg.Storage.Path)
			return nil
		},
	}
}
