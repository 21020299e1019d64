package validator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/qchecker/internal/model"
)

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestParseChoice(t *testing.T) {
	options := []string{"Paris", "London", "Berlin"}
	tests := []struct {
		name    string
		reply   string
		options []string
		want    bool
	}{
		{"exact option", "Paris", options, false},
		{"case insensitive", "  pARIS \n", options, false},
		{"answer inside option", "Lond", options, false},
		{"option inside answer", "The answer is Berlin.", options, false},
		{"not among options", "Rome", options, true},
		{"letter label", "B", options, false},
		{"letter label with dot", "c.", options, false},
		{"numbers are not labels", "2", options, true},
		{"computed answer collides with a position", "3", []string{"5", "10", "15", "20"}, true},
		{"numeric option text", "15", []string{"5", "10", "15", "20"}, false},
		{"label out of range", "D", options, true},
		{"single digit option", "4", []string{"2", "3", "4"}, false},
		{"single digit miss", "7", []string{"2", "3", "4"}, true},
		{"labelled answer", "A. Paris", options, false},
		{"label out of range keeps prefix", "d. Paris", options, false},
		{"short word is not a label", "No. 7", []string{"No. 7 bus", "No. 9 bus"}, false},
		{"quoted", `"Berlin"`, options, false},
		{"code fence", "```\nLondon\n```", options, false},
		{"empty reply", "   ", options, true},
		{"no options", "Paris", nil, true},
		{"blank options skipped", "x", []string{"", " "}, true},
		{"multi-line labels", "A\nC", options, false},
		{"multi-line with a miss", "Madrid\nRome", options, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseChoice(tt.reply, tt.options); got != tt.want {
				t.Errorf("ParseChoice(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"4", false},
		{" 4 \n", false},
		{"-3.25", false},
		{"1e3", false},
		{"42.", false},
		{"`7`", false},
		{"I cannot determine a number", true},
		{"NONE", true},
		{"", true},
		{"NaN", true},
		{"Inf", true},
		{"4 apples", true},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			if got := ParseNumeric(tt.reply); got != tt.want {
				t.Errorf("ParseNumeric(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestParseSubjective(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"IMPOSSIBLE", true},
		{"  impossible\n", true},
		{"**Impossible.**", true},
		{"POSSIBLE", false},
		{"possible", false},
		{"It is impossible to say", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			if got := ParseSubjective(tt.reply); got != tt.want {
				t.Errorf("ParseSubjective(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestProtocolFor(t *testing.T) {
	tests := []struct {
		qt   model.QuestionType
		want string
	}{
		{model.TypeMCQ, "choice"},
		{model.TypeMSQ, "choice"},
		{model.TypeNAT, "numeric"},
		{model.TypeSUB, "subjective"},
		{"ESSAY", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := string(ProtocolFor(tt.qt).Name()); got != tt.want {
			t.Errorf("ProtocolFor(%q) = %q, want %q", tt.qt, got, tt.want)
		}
	}
}

func TestJudge(t *testing.T) {
	ctx := context.Background()

	t.Run("NAT numeric reply", func(t *testing.T) {
		ai := &fakeCompleter{reply: "4"}
		wrong, err := New(ai).Judge(ctx, model.Question{ID: "7", Type: model.TypeNAT, Statement: "What is 2+2?"})
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if wrong {
			t.Error("expected not wrong")
		}
		if !strings.Contains(ai.prompts[0], "What is 2+2?") {
			t.Error("prompt should carry the statement")
		}
	})

	t.Run("NAT non-numeric reply", func(t *testing.T) {
		ai := &fakeCompleter{reply: "I cannot determine a number"}
		wrong, err := New(ai).Judge(ctx, model.Question{ID: "7", Type: model.TypeNAT, Statement: "What is 2+2?"})
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if !wrong {
			t.Error("expected wrong")
		}
	})

	t.Run("MCQ answer not among options", func(t *testing.T) {
		ai := &fakeCompleter{reply: "Rome"}
		q := model.Question{ID: "9", Type: model.TypeMCQ, Options: []string{"Paris", "London", "Berlin"}}
		wrong, err := New(ai).Judge(ctx, q)
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if !wrong {
			t.Error("expected wrong")
		}
	})

	t.Run("SUB impossible", func(t *testing.T) {
		ai := &fakeCompleter{reply: "IMPOSSIBLE"}
		wrong, err := New(ai).Judge(ctx, model.Question{ID: "3", Type: model.TypeSUB})
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if !wrong {
			t.Error("expected wrong")
		}
	})

	t.Run("unknown type skips the model", func(t *testing.T) {
		ai := &fakeCompleter{reply: "POSSIBLE"}
		wrong, err := New(ai).Judge(ctx, model.Question{ID: "5", Type: "ESSAY"})
		if err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if !wrong {
			t.Error("unknown type should be wrong")
		}
		if ai.calls != 0 {
			t.Errorf("expected no AI calls, got %d", ai.calls)
		}
	})

	t.Run("call failure", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		ai := &fakeCompleter{err: boom}
		_, err := New(ai).Judge(ctx, model.Question{ID: "1", Type: model.TypeNAT})
		var callErr *CallError
		if !errors.As(err, &callErr) {
			t.Fatalf("expected CallError, got %v", err)
		}
		if callErr.QuestionID != "1" || !errors.Is(err, boom) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		ai := &fakeCompleter{reply: "  \n"}
		_, err := New(ai).Judge(ctx, model.Question{ID: "1", Type: model.TypeSUB})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("expected ErrEmptyResponse, got %v", err)
		}
	})
}
