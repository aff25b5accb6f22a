// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/memory"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func newRetrieveCmd() *cobra.Command {
	var (
		k        int
		asJSON   bool
		showRaw  bool
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve relevant context for a query",
		Long: `Retrieve relevant context for a query. Summaries are searched
first, then raw documents fill the remaining slots. Output is a
formatted context block unless --json or --raw is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			threshold := a.cfg.Retrieval.ScoreThreshold
			if cmd.Flags().Changed("min-score") {
				threshold = minScore
			}
			if k <= 0 {
				k = a.cfg.Retrieval.K
			}

			results, err := a.service.Retrieve(cmd.Context(), args[0], k, threshold)
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return mnemoerr.Errorf(mnemoerr.CodeCLIOutputFailure, "encoding results: %w", err)
				}
			case showRaw:
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\t%s\n", r.ID, r.Score, r.Content)
				}
			default:
				fmt.Fprintln(cmd.OutOrStdout(), memory.FormatContext(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "maximum number of results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum similarity score (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "emit one tab-separated line per result")

	return cmd
}
