// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact stale documents when the store exceeds its size ceiling",
		Long: `Compact stale documents. When the store's on-disk size exceeds the
configured ceiling, the least-recently-used half of documents outside
the staleness window are resummarized and archived, then the index is
rebuilt. Below the ceiling this is a no-op.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.service.CompactStale(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, archived %d, size %.1f MB -> %.1f MB\n",
				stats.Processed, stats.Archived, stats.SizeBeforeMB, stats.SizeAfterMB)
			return nil
		},
	}
}
