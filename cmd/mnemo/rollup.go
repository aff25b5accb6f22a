// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRollupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollup",
		Short: "Roll up document groups into weekly summaries",
		Long: `Roll up document groups into weekly summaries. Non-obsolete,
non-archived documents are grouped by ISO week and type; groups of
three or more are summarized and their sources archived.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			created, err := a.service.RollUpSummaries(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %d summaries\n", created)
			return nil
		},
	}
}
