// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve extracts arXiv identifiers from user input.
package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// linkPattern matches arXiv abstract, PDF, and ar5iv HTML links:
// "https://arxiv.org/abs/2403.01915", "arxiv.org/pdf/2403.01915v2",
// "https://ar5iv.labs.arxiv.org/html/2403.01915".
var linkPattern = regexp.MustCompile(`(?:arxiv\.org/(?:pdf|abs)/|ar5iv\.labs\.arxiv\.org/html/|ar5iv\.org/html/)(\d{4}\.\d{4,5}(?:v\d+)?)`)

// idPattern matches bare identifiers: "2403.01915", "arXiv:2403.01915", "2403.01915v2".
var idPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// Extract returns the arXiv identifier found in input. Links are tried
// before bare identifiers. The second return value is false when no
// identifier could be found.
func Extract(input string) (string, bool) {
	input = strings.TrimSpace(input)

	if m := linkPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if m := idPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	return "", false
}

// ExtractID is like Extract but returns an error describing the input
// when no identifier is found.
func ExtractID(input string) (string, error) {
	id, ok := Extract(input)
	if !ok {
		return "", fmt.Errorf("couldn't identify an arXiv id in %q", input)
	}
	return id, nil
}
