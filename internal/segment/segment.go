// Package segment splits a streaming token sequence into sentences suitable
// for one-shot speech synthesis.
//
// The turn pipeline feeds LLM token deltas into a Segmenter as they arrive;
// each completed sentence is synthesized immediately, which keeps the
// time-to-first-audio at roughly one sentence of LLM latency instead of a
// whole response. The boundary rules are tuned for spoken English: honorifics
// and other abbreviations do not end a sentence, decimals and enumerations do
// not end a sentence, and sentences shorter than a minimum word count are
// merged into the next one so the voice does not fire off choppy fragments.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinWords is the default minimum segment length in words.
const DefaultMinWords = 10

// abbreviations that end in a period without ending a sentence. Compared
// against the lowercased final token of a candidate segment.
var abbreviations = map[string]bool{
	"dr.": true, "mr.": true, "mrs.": true, "ms.": true, "prof.": true,
	"sr.": true, "jr.": true, "etc.": true, "i.e.": true, "e.g.": true,
	"vs.": true, "inc.": true, "ltd.": true, "co.": true,
}

// Segmenter accumulates streamed text and emits complete sentences.
// Not safe for concurrent use; the pipeline owns one per turn.
type Segmenter struct {
	minWords int
	buf      string
}

// New creates a Segmenter that holds sentences back until they reach
// minWords words. Pass 0 for DefaultMinWords.
func New(minWords int) *Segmenter {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	return &Segmenter{minWords: minWords}
}

// Push appends a token delta and returns any segments completed by it,
// in order. The returned segments are trimmed of surrounding whitespace.
func (s *Segmenter) Push(delta string) []string {
	s.buf += delta
	var out []string
	for {
		seg, rest, ok := s.split()
		if !ok {
			break
		}
		out = append(out, seg)
		s.buf = rest
	}
	return out
}

// Flush returns whatever text remains buffered, trimmed, and resets the
// Segmenter. Called at end of turn so trailing text without a terminator
// (or below the word minimum) is still spoken.
func (s *Segmenter) Flush() string {
	out := strings.TrimSpace(s.buf)
	s.buf = ""
	return out
}

// Pending reports whether any unemitted text is buffered.
func (s *Segmenter) Pending() bool {
	return strings.TrimSpace(s.buf) != ""
}

// split finds the first valid sentence boundary in the buffer and returns
// the completed segment plus the remainder.
func (s *Segmenter) split() (seg, rest string, ok bool) {
	for i := 0; i < len(s.buf); i++ {
		c := s.buf[i]
		if c != '.' && c != '?' && c != '!' {
			continue
		}
		candidate := s.buf[:i+1]
		after := s.buf[i+1:]

		if c == '.' && (isAbbreviation(candidate) || endsInNumber(candidate)) {
			continue
		}
		if !validContinuation(after) {
			continue
		}
		trimmed := strings.TrimSpace(candidate)
		if len(strings.Fields(trimmed)) < s.minWords {
			// Too short to speak on its own; merge into the next sentence.
			continue
		}
		return trimmed, strings.TrimLeft(after, " "), true
	}
	return "", "", false
}

// isAbbreviation reports whether the candidate's final token is a known
// abbreviation, e.g. "…I met Dr." must not end a sentence.
func isAbbreviation(candidate string) bool {
	fields := strings.Fields(candidate)
	if len(fields) == 0 {
		return false
	}
	return abbreviations[strings.ToLower(fields[len(fields)-1])]
}

// endsInNumber reports whether the text just before the terminator is
// numeric, which marks decimals ("2.0.") and enumerations rather than
// sentence ends. Only the last three characters are inspected.
func endsInNumber(candidate string) bool {
	prefix := candidate[:len(candidate)-1]
	if len(prefix) > 3 {
		prefix = prefix[len(prefix)-3:]
	}
	prefix = strings.ReplaceAll(prefix, ".", "")
	if prefix == "" {
		return false
	}
	for _, r := range prefix {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// validContinuation reports whether the text following a terminator is
// consistent with a sentence having just ended: nothing yet, whitespace, or
// an uppercase letter. A lowercase or digit continuation means the
// terminator was internal ("3.14", "example.com").
func validContinuation(after string) bool {
	if after == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(after)
	return unicode.IsSpace(r) || unicode.IsUpper(r)
}
