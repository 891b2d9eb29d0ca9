// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rewrite replaces the src of every img element whose source begins with
// one of prefixes by outputDir joined with the source's LocalName. It
// returns the rewritten text and the number of elements changed.
//
// Sources that do not parse as URLs are left alone. Only changed img tags
// are re-serialized; every other byte of htmlText is copied through
// unchanged. Rewrite does not check that the local files exist.
func Rewrite(htmlText, outputDir string, prefixes []string) (string, int, error) {
	z := html.NewTokenizer(strings.NewReader(htmlText))

	var b strings.Builder
	b.Grow(len(htmlText))
	rewritten := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", 0, fmt.Errorf("tokenizing document: %w", err)
			}
			b.Write(z.Raw())
			break
		}

		// Raw is invalidated by Token, so copy it first.
		raw := string(z.Raw())
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			if tok.DataAtom == atom.Img && rewriteSrc(&tok, outputDir, prefixes) {
				b.WriteString(tok.String())
				rewritten++
				continue
			}
		}
		b.WriteString(raw)
	}

	if rewritten == 0 {
		return htmlText, 0, nil
	}
	return b.String(), rewritten, nil
}

// LocalPath returns the path a rewritten reference points at.
func LocalPath(outputDir, src string) string {
	return filepath.ToSlash(filepath.Join(outputDir, LocalName(src)))
}

func rewriteSrc(tok *html.Token, outputDir string, prefixes []string) bool {
	for i, a := range tok.Attr {
		if a.Namespace != "" || a.Key != "src" {
			continue
		}
		if !hasAnyPrefix(a.Val, prefixes) {
			return false
		}
		// Scan drops sources it cannot parse, so nothing was stored for them.
		if _, err := url.Parse(strings.TrimSpace(a.Val)); err != nil {
			return false
		}
		tok.Attr[i].Val = LocalPath(outputDir, a.Val)
		return true
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
