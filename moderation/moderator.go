//go:generate go run go.uber.org/mock/mockgen -source=moderator.go -destination=../mocks/mock_moderator.go -package=mocks
package moderation

import (
	"chat-fanout/errors"
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Verdict is the moderated form of a message body.
type Verdict struct {
	Body  string
	Words []string
	Lang  string
}

type IModerator interface {
	Moderate(body string) Verdict
}

// Moderator masks forbidden words before a message is persisted.
// Matching ignores case, punctuation, spacing and common leet speak,
// so "B.4.d.g.€r" is caught by "badger".
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator initializes the Aho-Corasick automaton with a normalized version of the provided censored words list.
// Words made only of noise are ignored.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if p := normalizeRunes([]rune(word)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Moderate censors body and tags it with its language when detection is reliable.
func (m *Moderator) Moderate(body string) Verdict {
	censored, words := m.Censor(body)
	verdict := Verdict{Body: censored, Words: words}

	info := whatlanggo.Detect(body)
	if info.IsReliable() {
		verdict.Lang = info.Lang.Iso6391()
	}
	if len(words) > 0 {
		m.log.Debug("message censored", "words", len(words), "lang", verdict.Lang)
	}
	return verdict
}

// Censor replaces every forbidden pattern with the censored char, keeping the
// untouched characters (and the spacing) of the original text.
// It returns the patterns found, in order of appearance.
func (m *Moderator) Censor(original string) (string, []string) {
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}
	return string(origRunes), words
}

// Disabled lets every body through, only tagging the language.
type Disabled struct{}

func (Disabled) Moderate(body string) Verdict {
	info := whatlanggo.Detect(body)
	if !info.IsReliable() {
		return Verdict{Body: body}
	}
	return Verdict{Body: body, Lang: info.Lang.Iso6391()}
}

func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet speak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
