// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMaintainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintain",
		Short: "Run the maintenance check against the configured ceilings",
		Long: `Run the maintenance check. When the document count or the store's
on-disk size exceeds its configured ceiling, weekly rollup runs
synchronously; below both ceilings this is a no-op. The same check runs
automatically after every save.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.service.CheckAndMaintain(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "maintenance check complete")
			return nil
		},
	}
}
