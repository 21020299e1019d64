package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/qchecker/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Protocol names a prompt template.
type Protocol string

const (
	// ProtocolChoice is used for MCQ and MSQ questions.
	ProtocolChoice Protocol = "choice"
	// ProtocolNumeric is used for NAT questions.
	ProtocolNumeric Protocol = "numeric"
	// ProtocolSubjective is used for SUB questions.
	ProtocolSubjective Protocol = "subjective"
)

// Fixed reply tokens the templates ask the model for.
const (
	NoNumber   = "NONE"
	Possible   = "POSSIBLE"
	Impossible = "IMPOSSIBLE"
)

const maxStatementRunes = 10000

var instructionTagRegex = regexp.MustCompile(`(?i)</?\s*(system-instructions|instructions)\b[^>]*>`)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Protocol]*template.Template
)

// Option is a labelled answer option.
type Option struct {
	Label string
	Text  string
}

// Data holds template data for all prompts.
type Data struct {
	Statement   string
	Kind        string
	MultiSelect bool
	Options     []Option
	Sentinel    string
	Possible    string
	Impossible  string
}

// Load parses prompt templates from fsys. Only the first call has any effect;
// later calls return the result of the first.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Protocol]*template.Template)
		for _, p := range []Protocol{ProtocolChoice, ProtocolNumeric, ProtocolSubjective} {
			file := "templates/" + string(p) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(p)).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[p] = tmpl
		}
	})
	return loadErr
}

// Build renders the prompt for protocol p and question q. Templates are loaded
// from the embedded set if Load has not been called.
func Build(p Protocol, q model.Question) (string, error) {
	if err := Load(templateFS); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[p]
	if !ok {
		return "", errors.New("unknown prompt protocol: " + string(p))
	}

	data := Data{
		Statement:   sanitizeStatement(q.Statement),
		Kind:        kindName(q.Type),
		MultiSelect: q.Type == model.TypeMSQ,
		Options:     LabelOptions(q.Options),
		Sentinel:    NoNumber,
		Possible:    Possible,
		Impossible:  Impossible,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LabelOptions assigns A., B., ... labels in list order.
func LabelOptions(options []string) []Option {
	out := make([]Option, 0, len(options))
	for i, o := range options {
		out = append(out, Option{Label: Label(i), Text: strings.TrimSpace(o)})
	}
	return out
}

// Label returns the letter label for option index i (A..Z, then AA, AB, ...).
func Label(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return Label(i/26-1) + string(rune('A'+i%26))
}

func kindName(t model.QuestionType) string {
	if t == model.TypeMSQ {
		return "multiple-select"
	}
	return "multiple-choice"
}

func sanitizeStatement(s string) string {
	s = instructionTagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if s == "" {
		return "[No statement provided]"
	}

	if utf8.RuneCountInString(s) > maxStatementRunes {
		runes := []rune(s)
		s = string(runes[:maxStatementRunes]) + "\n\n[Statement truncated due to length]"
	}
	return s
}
