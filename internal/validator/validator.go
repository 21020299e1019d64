// Package validator asks a generative model whether a question is well-formed.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/qchecker/internal/model"
	"github.com/pavelanni/qchecker/internal/validator/prompts"
)

// ErrEmptyResponse is returned (wrapped in a CallError) when the model replies
// with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Completer sends a single prompt to a text-completion model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CallError reports that the model call for a question could not be completed.
type CallError struct {
	QuestionID string
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("AI call for question %s: %v", e.QuestionID, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Protocol is the judgment strategy for one question type. The set of
// implementations is closed: choice, numeric, subjective and unknown.
type Protocol interface {
	// Name identifies the prompt template; empty for the unknown protocol.
	Name() prompts.Protocol
	// Prompt renders the model prompt for q.
	Prompt(q model.Question) (string, error)
	// Wrong parses the model reply into a verdict.
	Wrong(q model.Question, reply string) bool

	sealed()
}

type choiceProtocol struct{}

func (choiceProtocol) Name() prompts.Protocol { return prompts.ProtocolChoice }
func (choiceProtocol) Prompt(q model.Question) (string, error) {
	return prompts.Build(prompts.ProtocolChoice, q)
}
func (choiceProtocol) Wrong(q model.Question, reply string) bool { return ParseChoice(reply, q.Options) }
func (choiceProtocol) sealed()                                   {}

type numericProtocol struct{}

func (numericProtocol) Name() prompts.Protocol { return prompts.ProtocolNumeric }
func (numericProtocol) Prompt(q model.Question) (string, error) {
	return prompts.Build(prompts.ProtocolNumeric, q)
}
func (numericProtocol) Wrong(_ model.Question, reply string) bool { return ParseNumeric(reply) }
func (numericProtocol) sealed()                                   {}

type subjectiveProtocol struct{}

func (subjectiveProtocol) Name() prompts.Protocol { return prompts.ProtocolSubjective }
func (subjectiveProtocol) Prompt(q model.Question) (string, error) {
	return prompts.Build(prompts.ProtocolSubjective, q)
}
func (subjectiveProtocol) Wrong(_ model.Question, reply string) bool { return ParseSubjective(reply) }
func (subjectiveProtocol) sealed()                                   {}

// unknownProtocol never calls the model and always judges wrong.
type unknownProtocol struct{}

func (unknownProtocol) Name() prompts.Protocol                 { return "" }
func (unknownProtocol) Prompt(model.Question) (string, error)  { return "", nil }
func (unknownProtocol) Wrong(model.Question, string) bool      { return true }
func (unknownProtocol) sealed()                                {}

// ProtocolFor selects the protocol for a question type.
func ProtocolFor(t model.QuestionType) Protocol {
	switch t {
	case model.TypeMCQ, model.TypeMSQ:
		return choiceProtocol{}
	case model.TypeNAT:
		return numericProtocol{}
	case model.TypeSUB:
		return subjectiveProtocol{}
	default:
		return unknownProtocol{}
	}
}

// Validator judges questions with a Completer.
type Validator struct {
	ai Completer
}

// New creates a Validator that sends prompts to ai.
func New(ai Completer) *Validator {
	return &Validator{ai: ai}
}

// Judge reports whether q is malformed or unanswerable as authored. Questions
// of an unknown type are judged wrong without calling the model. Failures of
// the model call are returned as *CallError.
func (v *Validator) Judge(ctx context.Context, q model.Question) (bool, error) {
	p := ProtocolFor(q.Type)
	if p.Name() == "" {
		slog.Info("unknown question type, marking wrong", "id", q.ID, "type", q.Type)
		return true, nil
	}

	prompt, err := p.Prompt(q)
	if err != nil {
		return true, fmt.Errorf("build %s prompt: %w", p.Name(), err)
	}

	reply, err := v.ai.Complete(ctx, prompt)
	if err != nil {
		return true, &CallError{QuestionID: q.ID, Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		return true, &CallError{QuestionID: q.ID, Err: ErrEmptyResponse}
	}

	wrong := p.Wrong(q, reply)
	slog.Debug("question judged", "id", q.ID, "type", q.Type, "protocol", p.Name(), "reply", reply, "wrong", wrong)
	return wrong, nil
}
