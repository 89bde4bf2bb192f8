// Package moderation holds the text gates applied to submitted arguments.
package moderation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/letsee/debate-backend/pkg/apperr"
)

// DefaultMaxLength is the longest argument accepted, in characters.
const DefaultMaxLength = 2000

var (
	ErrEmptyArgument   = apperr.New(apperr.KindValidation, "argument must not be empty")
	ErrArgumentTooLong = apperr.New(apperr.KindValidation, "argument too long")
)

// DefaultPhrases are censored when no list is configured.
var DefaultPhrases = []string{"hate", "violence", "terror"}

// Filter validates and censors argument text.
type Filter struct {
	maxLength int
	patterns  []*regexp.Regexp
}

// NewFilter builds a filter. maxLength <= 0 uses DefaultMaxLength and a nil
// phrase list uses DefaultPhrases.
func NewFilter(maxLength int, phrases []string) *Filter {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if phrases == nil {
		phrases = DefaultPhrases
	}
	f := &Filter{maxLength: maxLength}
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f.patterns = append(f.patterns, regexp.MustCompile(phrasePattern(p)))
	}
	return f
}

// phrasePattern matches p case-insensitively as a whole word. Edges that are
// not word characters, such as punctuation, match anywhere.
func phrasePattern(p string) string {
	expr := `(?i)` + regexp.QuoteMeta(p)
	if isWordByte(p[0]) {
		expr = `(?i)\b` + regexp.QuoteMeta(p)
	}
	if isWordByte(p[len(p)-1]) {
		expr += `\b`
	}
	return expr
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// MaxLength is the configured character limit.
func (f *Filter) MaxLength() int { return f.maxLength }

// ValidateArgumentLength trims text and rejects empty or oversized arguments.
func (f *Filter) ValidateArgumentLength(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyArgument
	}
	if utf8.RuneCountInString(text) > f.maxLength {
		return "", ErrArgumentTooLong
	}
	return text, nil
}

// Censor masks every whole-word occurrence of a blocked phrase with asterisks of the same
// length and returns the number of occurrences masked.
func (f *Filter) Censor(text string) (string, int) {
	violations := 0
	for _, re := range f.patterns {
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			violations++
			return strings.Repeat("*", utf8.RuneCountInString(m))
		})
	}
	return text, violations
}

// Clean validates then censors text.
func (f *Filter) Clean(text string) (string, int, error) {
	text, err := f.ValidateArgumentLength(text)
	if err != nil {
		return "", 0, err
	}
	clean, violations := f.Censor(text)
	return clean, violations, nil
}
