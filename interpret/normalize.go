package interpret

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalized is the canonical form of an utterance. Folded is lowercased,
// whitespace-collapsed, with every quote style mapped to a straight double
// quote marker; diacritics are preserved. offsets maps each byte of Folded
// back to the byte position in Raw it came from, so slot values can be
// extracted verbatim with their original casing.
type Normalized struct {
	Raw     string
	Folded  string
	offsets []int
}

// Normalize canonicalizes raw. It is pure and idempotent on its own
// Folded output.
func Normalize(raw string) Normalized {
	var b strings.Builder
	offsets := make([]int, 0, len(raw)+1)
	pendingSpace := false

	for i, r := range raw {
		if unicode.IsSpace(r) {
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			offsets = append(offsets, i)
			pendingSpace = false
		}
		out := foldRune(raw, i, r)
		n := utf8.RuneLen(out)
		if n < 0 {
			n = 1
		}
		b.WriteRune(out)
		for k := 0; k < n; k++ {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(raw))

	return Normalized{Raw: raw, Folded: b.String(), offsets: offsets}
}

// foldRune lowercases r and maps quote characters to the straight marker.
// A single quote between two letters is an apostrophe (l'échéance) and is
// kept as one, not a quote marker.
func foldRune(raw string, i int, r rune) rune {
	switch r {
	case '“', '”', '«', '»', '"':
		return '"'
	case '\'', '‘', '’', '`':
		if letterBefore(raw, i) && letterAfter(raw, i, r) {
			return '\''
		}
		return '"'
	}
	return unicode.ToLower(r)
}

func letterBefore(s string, i int) bool {
	r, size := utf8.DecodeLastRuneInString(s[:i])
	return size > 0 && unicode.IsLetter(r)
}

func letterAfter(s string, i int, cur rune) bool {
	r, size := utf8.DecodeRuneInString(s[i+utf8.RuneLen(cur):])
	return size > 0 && unicode.IsLetter(r)
}

// RawSpan returns the original-case substring of Raw behind the Folded
// byte range [start, end), trimmed of surrounding whitespace.
func (n Normalized) RawSpan(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(n.Folded) {
		end = len(n.Folded)
	}
	if start >= end || len(n.offsets) <= end {
		return ""
	}
	return strings.TrimSpace(n.Raw[n.offsets[start]:n.offsets[end]])
}

// Slice re-anchors the normalized form at folded byte offset start. The
// raw string and its offsets are kept so RawSpan stays exact.
func (n Normalized) Slice(start int) Normalized {
	if start < 0 {
		start = 0
	}
	if start > len(n.Folded) {
		start = len(n.Folded)
	}
	return Normalized{Raw: n.Raw, Folded: n.Folded[start:], offsets: n.offsets[start:]}
}

// TrimAddressee strips a leading addressee name ("Alya, ...") plus the
// separators after it. Utterances not starting with the name pass through
// unchanged.
func (n Normalized) TrimAddressee(name string) Normalized {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || !strings.HasPrefix(n.Folded, name) {
		return n
	}
	rest := n.Folded[len(name):]
	if rest != "" && !strings.ContainsRune(" ,:!.", rune(rest[0])) {
		return n
	}
	i := len(name)
	for i < len(n.Folded) && strings.ContainsRune(" ,:!.", rune(n.Folded[i])) {
		i++
	}
	return n.Slice(i)
}

// QuoteSpans pairs up quote markers in Folded and returns the content
// ranges between them, in reading order. An unmatched trailing marker is
// ignored.
func (n Normalized) QuoteSpans() []Span {
	var spans []Span
	open := -1
	for i := 0; i < len(n.Folded); i++ {
		if n.Folded[i] != '"' {
			continue
		}
		if open < 0 {
			open = i + 1
		} else {
			spans = append(spans, Span{Start: open, End: i})
			open = -1
		}
	}
	return spans
}
