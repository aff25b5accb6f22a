// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show memory store statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			total, err := a.index.Count(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:    %s\n", a.cfg.Storage.Backend)
			fmt.Fprintf(out, "data dir:   %s\n", a.cfg.Storage.Path)
			fmt.Fprintf(out, "records:    %d\n", total)

			for _, level := range []store.Level{store.LevelDocument, store.LevelSummary, store.LevelDelta} {
				records, err := a.index.List(ctx, store.Filter{store.MetaLevel: string(level)}, 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-11s %d\n", string(level)+"s:", len(records))
			}
			return nil
		},
	}
}
