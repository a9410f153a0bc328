// Package search implements the chat history query language: a forgiving
// fuzzy matcher, a DD/MM/YY date parser and the prefix/mode dispatch that
// turns a query into a predicate over chats.
package search

import "strings"

// FuzzyMatch reports whether query matches text case-insensitively, either as
// a substring or as an ordered (not necessarily contiguous) subsequence of
// characters. An empty query matches everything.
func FuzzyMatch(query, text string) bool {
	if query == "" {
		return true
	}

	q := strings.ToLower(query)
	t := strings.ToLower(text)

	if strings.Contains(t, q) {
		return true
	}

	qr := []rune(q)
	i := 0
	for _, r := range t {
		if r == qr[i] {
			i++
			if i == len(qr) {
				return true
			}
		}
	}
	return false
}
