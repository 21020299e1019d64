package model

import (
	"context"
	"time"
)

// QuestionType is the authoring type of a question. Values outside the known
// set are kept verbatim so they can be displayed and judged fail-closed.
type QuestionType string

const (
	// TypeMCQ is a multiple-choice question with a single correct option.
	TypeMCQ QuestionType = "MCQ"
	// TypeMSQ is a multiple-select question with one or more correct options.
	TypeMSQ QuestionType = "MSQ"
	// TypeNAT is a numerical-answer-type question.
	TypeNAT QuestionType = "NAT"
	// TypeSUB is a subjective question answered with a free-form explanation.
	TypeSUB QuestionType = "SUB"
)

// Known reports whether t is one of the supported question types.
func (t QuestionType) Known() bool {
	switch t {
	case TypeMCQ, TypeMSQ, TypeNAT, TypeSUB:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == TypeMCQ || t == TypeMSQ
}

// Status is the single displayable state of a question.
type Status string

const (
	StatusNotChecked Status = "not_checked"
	StatusChecking   Status = "checking"
	StatusCorrect    Status = "correct"
	StatusWrong      Status = "wrong"
	StatusError      Status = "error"
)

// Question is a stored exam question and its latest check result.
type Question struct {
	ID         string       `json:"id" yaml:"id"`
	Statement  string       `json:"statement" yaml:"statement"`
	Type       QuestionType `json:"type" yaml:"type"`
	Options    []string     `json:"options,omitempty" yaml:"options,omitempty"`
	IsWrong    *bool        `json:"is_wrong" yaml:"-"`
	CheckError bool         `json:"check_error" yaml:"-"`
	CreatedAt  time.Time    `json:"created_at" yaml:"-"`
}

// Clone returns a deep copy so callers can't mutate shared slices or pointers.
func (q Question) Clone() Question {
	c := q
	if q.Options != nil {
		c.Options = append([]string(nil), q.Options...)
	}
	if q.IsWrong != nil {
		v := *q.IsWrong
		c.IsWrong = &v
	}
	return c
}

// DeriveStatus maps the in-flight marker and the stored result to exactly one
// display status. In-flight wins over any stale error or verdict.
func DeriveStatus(inFlight bool, q Question) Status {
	switch {
	case inFlight:
		return StatusChecking
	case q.CheckError:
		return StatusError
	case q.IsWrong == nil:
		return StatusNotChecked
	case *q.IsWrong:
		return StatusWrong
	default:
		return StatusCorrect
	}
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// QuestionImport is used for loading questions from JSON or YAML files.
type QuestionImport struct {
	ID        string       `json:"id" yaml:"id"`
	Statement string       `json:"statement" yaml:"statement"`
	Type      QuestionType `json:"type" yaml:"type"`
	Options   []string     `json:"options" yaml:"options"`
}

// Config holds runtime dashboard parameters set via CLI flags.
type Config struct {
	BasePath     string        // URL prefix for sub-path deployments (e.g. "/qc")
	CheckTimeout time.Duration // 0 means no per-check deadline
	AIProvider   string
	AIModel      string
	StoreKind    string
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
