package validator

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/qchecker/internal/validator/prompts"
)

// Reply parsing is a loose heuristic, not a grammar: the model's output format
// is not contractually fixed. Each function returns true when the question
// should be marked wrong.

var labelPrefixRegex = regexp.MustCompile(`^([a-z]{1,2})\s*[.):]\s+`)

// ParseChoice judges an MCQ/MSQ reply. The question is wrong unless the reply
// matches at least one option case-insensitively: the reply is a substring of
// an option, an option is a substring of the reply, or the reply is a bare
// letter label ("B"). Numbers are never read as labels, since a computed
// answer to a numeric question could collide with an option position.
// Single-character replies match only labels or
// identical options. A multi-line reply also matches when every non-empty line
// matches some option.
func ParseChoice(reply string, options []string) bool {
	answer := normalizeAnswer(reply, len(options))
	if answer == "" {
		return true
	}
	if matchesOption(answer, options) {
		return false
	}

	lines := strings.Split(stripCodeFences(reply), "\n")
	matched := 0
	for _, line := range lines {
		l := normalizeAnswer(line, len(options))
		if l == "" {
			continue
		}
		if !matchesOption(l, options) {
			return true
		}
		matched++
	}
	return matched < 2
}

// ParseNumeric judges a NAT reply: wrong iff the trimmed reply is not a
// finite number.
func ParseNumeric(reply string) bool {
	s := cleanReply(reply)
	s = strings.TrimSuffix(s, ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return true
	}
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// ParseSubjective judges a SUB reply: wrong iff the normalized reply equals
// the impossible token.
func ParseSubjective(reply string) bool {
	s := strings.Trim(cleanReply(reply), " .!")
	return strings.ToUpper(s) == prompts.Impossible
}

func matchesOption(answer string, options []string) bool {
	if isLabel(strings.TrimRight(answer, ".)"), len(options)) {
		return true
	}
	// A lone character is a label or an exact option, never a substring.
	if utf8.RuneCountInString(answer) < 2 {
		for _, o := range options {
			if strings.EqualFold(strings.TrimSpace(o), answer) {
				return true
			}
		}
		return false
	}
	for _, o := range options {
		opt := strings.ToLower(strings.TrimSpace(o))
		if opt == "" {
			continue
		}
		if strings.Contains(opt, answer) || strings.Contains(answer, opt) {
			return true
		}
	}
	return false
}

func isLabel(s string, n int) bool {
	for i := 0; i < n; i++ {
		if s == strings.ToLower(prompts.Label(i)) {
			return true
		}
	}
	return false
}

// normalizeAnswer lowercases s and strips a leading "B." style label when it
// names one of the n options.
func normalizeAnswer(s string, n int) string {
	s = strings.ToLower(cleanReply(s))
	if m := labelPrefixRegex.FindStringSubmatchIndex(s); m != nil && isLabel(s[m[2]:m[3]], n) {
		if rest := strings.TrimSpace(s[m[1]:]); rest != "" {
			s = rest
		}
	}
	return strings.TrimSpace(s)
}

func cleanReply(s string) string {
	s = stripCodeFences(s)
	return strings.Trim(s, " \t\r\n\"'`*")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
