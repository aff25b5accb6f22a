// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newIndex)
}

func newIndex(rootPath string, dimensions int) (store.VectorIndex, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexOpenFailure, "creating index root %s: %w", rootPath, err)
	}
	return NewIndex(filepath.Join(rootPath, "memory.db"), dimensions)
}
