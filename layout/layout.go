// Package layout fingerprints the structure of a card's markup so that a
// change in the page template can be told apart from a page with no cards.
package layout

import (
	"hash/fnv"
	"math/bits"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// DriftThreshold is the Hamming distance above which two signatures are
// treated as different templates.
const DriftThreshold = 12

// shingleSize is the number of consecutive elements hashed together.
const shingleSize = 3

// Signature is a 64-bit SimHash over the card's element sequence. Each
// element contributes its tag name and sorted class list; text and other
// attributes are ignored, so two postings rendered from the same template
// sign alike.
func Signature(markup string) uint64 {
	elems := elements(markup)
	if len(elems) == 0 {
		return 0
	}
	if len(elems) < shingleSize {
		return simhash([]string{strings.Join(elems, "_")})
	}

	shingles := make([]string, 0, len(elems)-shingleSize+1)
	for i := 0; i <= len(elems)-shingleSize; i++ {
		shingles = append(shingles, strings.Join(elems[i:i+shingleSize], "_"))
	}
	return simhash(shingles)
}

// Drift is the Hamming distance between two signatures.
func Drift(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Changed reports whether b looks like a different template than a.
// A zero signature means "unknown" and never counts as a change.
func Changed(a, b uint64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return Drift(a, b) > DriftThreshold
}

// elements walks markup with the tokenizer and returns one token per start
// tag, e.g. "div.brh-rfq-item.active".
func elements(markup string) []string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var out []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			out = append(out, element(tok))
		}
	}
}

func element(tok html.Token) string {
	var classes []string
	for _, a := range tok.Attr {
		if a.Key == "class" {
			classes = strings.Fields(a.Val)
			break
		}
	}
	if len(classes) == 0 {
		return tok.Data
	}
	sort.Strings(classes)
	return tok.Data + "." + strings.Join(classes, ".")
}

// simhash accumulates FNV-64a hashes of the features into a bit vector.
func simhash(features []string) uint64 {
	var vector [64]int
	for _, f := range features {
		h := fnv.New64a()
		h.Write([]byte(f))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}
