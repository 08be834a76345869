package relay

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxPieceDelay bounds the pause after any single piece regardless of
// configuration, so a pathological delay setting cannot stall the stream.
const MaxPieceDelay = 200 * time.Millisecond

// Runes that end a sentence for pacing purposes.
const sentenceEnders = ".!?;。！？；\n"

// SplitText splits text into pieces of at most maxChars characters,
// preferring to break at whitespace. Concatenating the pieces reproduces the
// input exactly. A single run longer than maxChars is hard-split at exactly
// maxChars boundaries. Empty input yields no pieces.
func SplitText(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	// Greedily pack word-plus-trailing-whitespace units.
	var packed [][]rune
	var buf []rune
	for _, unit := range tokenize(text) {
		if len(buf) == 0 {
			buf = unit
			continue
		}
		if len(buf)+len(unit) <= maxChars {
			buf = append(buf, unit...)
		} else {
			packed = append(packed, buf)
			buf = unit
		}
	}
	if len(buf) > 0 {
		packed = append(packed, buf)
	}

	// Hard-split anything still over the bound.
	pieces := make([]string, 0, len(packed))
	for _, p := range packed {
		if len(p) <= maxChars {
			pieces = append(pieces, string(p))
			continue
		}
		for i := 0; i < len(p); i += maxChars {
			end := i + maxChars
			if end > len(p) {
				end = len(p)
			}
			pieces = append(pieces, string(p[i:end]))
		}
	}
	return pieces
}

// tokenize splits text into units of one non-whitespace run plus its
// trailing whitespace. Leading whitespace becomes its own unit so nothing
// is lost.
func tokenize(text string) [][]rune {
	runes := []rune(text)
	var units [][]rune
	i := 0
	for i < len(runes) {
		j := i
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		units = append(units, runes[i:j])
		i = j
	}
	return units
}

// PieceDelay computes the pause after emitting one piece: the base delay,
// plus the punctuation delay when the piece ends a sentence, capped at
// MaxPieceDelay. A non-positive base disables pacing entirely.
func PieceDelay(piece string, base, punct time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	if punct > 0 && piece != "" {
		last, _ := utf8.DecodeLastRuneInString(piece)
		if strings.ContainsRune(sentenceEnders, last) {
			delay += punct
		}
	}
	if delay > MaxPieceDelay {
		delay = MaxPieceDelay
	}
	return delay
}
