package interpret

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Classification is the result of running the rule list over a folded
// utterance. Priority is the index of the matching rule; lower is
// stronger. Anchor spans the matched verb so slot patterns can search
// relative to it.
type Classification struct {
	Intent   Intent
	Anchor   Span
	Priority int
	Platform string
}

// Classify walks the lexicon rules in declared order and returns the
// first whose require groups are all satisfied and whose forbid terms are
// all absent. It never fails: utterances matching no rule come back as
// IntentUnknown.
func Classify(lex *Lexicon, n Normalized) Classification {
	for i, rule := range lex.Rules {
		anchor, ok := matchRule(rule, n.Folded)
		if !ok {
			continue
		}
		return Classification{Intent: rule.Intent, Anchor: anchor, Priority: i, Platform: rule.Platform}
	}
	return Classification{Intent: IntentUnknown, Priority: len(lex.Rules)}
}

func matchRule(rule Rule, folded string) (Span, bool) {
	for _, term := range rule.Forbid {
		if findTerm(folded, term) >= 0 {
			return Span{}, false
		}
	}
	var anchor Span
	for gi, group := range rule.Require {
		hit := -1
		hitLen := 0
		for _, term := range group {
			if at := findTerm(folded, term); at >= 0 && (hit < 0 || at < hit) {
				hit = at
				hitLen = len(term)
			}
		}
		if hit < 0 {
			return Span{}, false
		}
		if gi == 0 {
			anchor = Span{Start: hit, End: hit + hitLen}
		}
	}
	return anchor, true
}

// findTerm locates term in folded at a word boundary and returns its byte
// offset, or -1. Terms may span several words ("qui a accès").
func findTerm(folded, term string) int {
	return findTermFrom(folded, term, 0)
}

// findTermFrom is findTerm starting the scan at byte offset from.
func findTermFrom(folded, term string, from int) int {
	if term == "" || from >= len(folded) {
		return -1
	}
	for {
		i := strings.Index(folded[from:], term)
		if i < 0 {
			return -1
		}
		at := from + i
		if boundaryBefore(folded, at) && boundaryAfter(folded, at+len(term)) {
			return at
		}
		from = at + len(term)
		if from >= len(folded) {
			return -1
		}
	}
}

func boundaryBefore(s string, i int) bool {
	r, size := utf8.DecodeLastRuneInString(s[:i])
	return size == 0 || !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	r, size := utf8.DecodeRuneInString(s[i:])
	return size == 0 || !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
