// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory

import "fmt"

// Delta describes the change between two versions of a logical
// document. Deterministic and total: it never fails, so version
// supersession is never blocked on diff generation. The description is
// a length heuristic, not a content diff; the record exists for the
// audit trail, not for reconstruction.
func Delta(oldText, newText string) string {
	switch {
	case len(oldText) > len(newText):
		return fmt.Sprintf("Version update: removed %d characters; the new version is shorter.", len(oldText)-len(newText))
	case len(newText) > len(oldText):
		return fmt.Sprintf("Version update: added %d characters; the new version is longer.", len(newText)-len(oldText))
	default:
		return "Version update: modified, no length change."
	}
}
