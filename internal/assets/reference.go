// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assets discovers the images referenced by an HTML document,
// fetches them with bounded concurrency, stores them under deterministic
// local names, and rewrites the document to point at the local copies.
package assets

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Reference is one image reference found in a document.
type Reference struct {
	// Index is the position of the reference in document order.
	Index int

	// Src is the source attribute as written in the document.
	Src string

	// URL is Src resolved against the document base. Inline data
	// references keep their raw form.
	URL string
}

// IsInline reports whether ref embeds its payload (a data: URL) and must
// never be fetched.
func IsInline(ref string) bool {
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}

// LocalName returns the file name an asset is stored under: the final
// segment of the URL path, ignoring query and fragment. References without
// a usable final segment get a stable hash-based name.
func LocalName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return hashName(rawURL)
	}
	base := path.Base(u.Path)
	switch base {
	case "", ".", "..", "/":
		return hashName(rawURL)
	}
	return base
}

func hashName(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("asset-%x", h[:8])
}
