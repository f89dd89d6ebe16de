// Package textnorm provides the deterministic text normalizer and fingerprint
// used by the screening pipeline
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Collapse whitespace to single spaces and trim
package textnorm

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			cases.Fold(), // unicode case folding
		)
	},
}

// Fold returns the normalized form of s following the pipeline described above
func Fold(s string) string {
	if s == "" {
		return ""
	}

	// 1 repair UTF-8 drop invalid bytes
	s = strings.ToValidUTF8(s, "")

	// 2-3 transform via pooled chain then reset and return it
	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	// 4 collapse whitespace and trim
	return collapseSpaces(ns)
}

// DropShortTokens removes whitespace-separated tokens of length 1.
// This mirrors the documented but crude legacy pass that feeds the scorer;
// it is not applied to the fingerprint input
func DropShortTokens(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// Fingerprint returns the stable cache/dedup key for a message.
// It hashes the folded text with an unsalted 64-bit hash so the key survives
// process restarts
func Fingerprint(s string) string {
	sum := xxhash.Sum64String(Fold(s))
	return strconv.FormatUint(sum, 16)
}

// collapseSpaces squeezes runs of unicode whitespace into single spaces
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
