// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Scan parses htmlText and returns one Reference per img element carrying
// a non-empty src attribute, in document order. Relative sources are
// resolved against base. Sources that cannot be parsed, or relative sources
// when base is nil, are skipped. Duplicate sources are kept.
func Scan(htmlText string, base *url.URL) ([]Reference, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	var refs []Reference
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, exists := s.Attr("src")
		if !exists || strings.TrimSpace(src) == "" {
			return
		}
		abs, ok := resolveSource(base, src)
		if !ok {
			return
		}
		refs = append(refs, Reference{Index: len(refs), Src: src, URL: abs})
	})
	return refs, nil
}

func resolveSource(base *url.URL, src string) (string, bool) {
	src = strings.TrimSpace(src)
	if IsInline(src) {
		return src, true
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	if base == nil {
		if !u.IsAbs() {
			return "", false
		}
		return u.String(), true
	}
	return base.ResolveReference(u).String(), true
}
