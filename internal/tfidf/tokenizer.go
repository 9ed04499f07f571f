// Package tfidf is the pure in-memory lexical index (C3): term-frequency
// vectors with tag-boosted term counts, cosine-similarity query, and lazy
// IDF recomputation. It is rebuilt from the relational store on demand
// rather than persisted.
package tfidf

import (
	"regexp"
	"strings"
	"unicode"
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_.` + "`" + `]+`)

// stopWords is the small English stopword set the spec calls for —
// distinct from the teacher's programming-keyword stopword list, since
// this index tokenizes free-form memory prose, not source code.
var stopWords = buildStopWordMap([]string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with", "this", "these", "those",
	"but", "not", "have", "had", "do", "does", "did", "so", "if", "than",
})

func buildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenize implements the spec's C3 tokenization rules:
//  1. Lowercase; split on non-alphanumeric (but keep dotted symbols and
//     backtick-delimited identifiers intact through the initial split).
//  2. A dotted code symbol like "UserService.save" contributes itself as
//     one token AND its individual dot-separated segments.
//  3. Backtick-delimited identifiers emit an extra-weight token (returned
//     twice, so term-frequency counting naturally doubles their weight).
//  4. Drop tokens shorter than 2 characters and stopwords.
func Tokenize(text string) []string {
	var tokens []string

	for _, raw := range tokenRegex.FindAllString(text, -1) {
		backtick := strings.Contains(raw, "`")
		word := strings.Trim(raw, "`")
		if word == "" {
			continue
		}

		lower := strings.ToLower(word)

		if strings.Contains(word, ".") && !isNumeric(word) {
			tokens = append(tokens, appendIfValid(nil, lower)...)
			for _, seg := range strings.Split(lower, ".") {
				tokens = appendIfValid(tokens, seg)
			}
		} else {
			tokens = appendIfValid(tokens, lower)
		}

		if backtick {
			// Extra weight: count the identifier's tokens a second time.
			if strings.Contains(word, ".") && !isNumeric(word) {
				tokens = appendIfValid(tokens, lower)
				for _, seg := range strings.Split(lower, ".") {
					tokens = appendIfValid(tokens, seg)
				}
			} else {
				tokens = appendIfValid(tokens, lower)
			}
		}
	}

	return tokens
}

func appendIfValid(tokens []string, tok string) []string {
	if len(tok) < 2 {
		return tokens
	}
	if _, stop := stopWords[tok]; stop {
		return tokens
	}
	return append(tokens, tok)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
