// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the approximate character budget per token used to
// translate a token limit into a character limit.
const charsPerToken = 4

// ellipsis marks truncated output.
const ellipsis = "..."

// truncateRunes clips s to at most n runes. Budgets are character
// counts, so clipping must never split a multibyte rune.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Summarize produces an extractive summary of text within a token
// budget. Pure function of its input: identical text and budget always
// yield identical output, so summaries are restartable and testable.
//
// Short inputs (up to 3 paragraphs) are returned raw, truncated to the
// character budget. Longer inputs keep the first paragraph and sample
// the rest in strides, skipping paragraphs of 20 characters or fewer.
func Summarize(text string, maxTokens int) string {
	if text == "" {
		return ""
	}
	budget := maxTokens * charsPerToken

	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	if len(paragraphs) == 0 {
		return ""
	}

	if len(paragraphs) <= 3 {
		return truncateRunes(text, budget)
	}

	picked := []string{paragraphs[0]}
	accumulated := utf8.RuneCountInString(paragraphs[0])

	stride := len(paragraphs) / 4
	if stride < 1 {
		stride = 1
	}

	for i := 1; i < len(paragraphs); i += stride {
		if accumulated >= budget {
			break
		}
		p := paragraphs[i]
		if utf8.RuneCountInString(p) > 20 {
			picked = append(picked, p)
			accumulated += utf8.RuneCountInString(p)
		}
	}

	out := strings.Join(picked, "\n")
	if utf8.RuneCountInString(out) > budget {
		out = truncateRunes(out, budget) + ellipsis
	}
	return out
}
