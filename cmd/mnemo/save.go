// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/memory"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func newSaveCmd() *cobra.Command {
	var (
		author    string
		docType   string
		versionID string
		fromFile  string
	)

	cmd := &cobra.Command{
		Use:   "save [content]",
		Short: "Save a document into memory",
		Long: `Save a document into memory. Content comes from the argument,
--file, or stdin when neither is given. Setting --version-id makes the
document supersede the prior non-obsolete document with the same type
and version key, recording a delta between the two.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, args, fromFile)
			if err != nil {
				return err
			}

			a, err := wireApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			id, err := a.service.SaveDocument(cmd.Context(), memory.SaveRequest{
				Content:   content,
				Author:    author,
				Type:      docType,
				VersionID: versionID,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "document author")
	cmd.Flags().StringVar(&docType, "type", "note", "document type (e.g. code, changelog, error)")
	cmd.Flags().StringVar(&versionID, "version-id", "", "version key; supersedes the prior document with the same type and key")
	cmd.Flags().StringVar(&fromFile, "file", "", "read content from a file instead of the argument")

	return cmd
}

// readContent resolves document content from the argument, --file, or
// stdin, in that order of preference.
func readContent(cmd *cobra.Command, args []string, fromFile string) (string, error) {
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", mnemoerr.Errorf(mnemoerr.CodeCLIInputInvalid, "reading content file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", mnemoerr.Errorf(mnemoerr.CodeCLIInputInvalid, "reading stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", mnemoerr.New(mnemoerr.CodeCLIInputInvalid, "no content provided: pass an argument, --file, or pipe to stdin")
	}
	return string(data), nil
}
