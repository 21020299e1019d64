package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pavelanni/qchecker/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, id string, qt model.QuestionType, options []string, createdAt time.Time) {
	t.Helper()
	err := s.InsertQuestion(context.Background(), model.Question{
		ID:        id,
		Statement: "statement " + id,
		Type:      qt,
		Options:   options,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
}

func TestFetchAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty DB should return zero count and empty list.
	count, err := s.QuestionCount(ctx)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}
	list, err := s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	insertTestQuestion(t, s, "old", model.TypeNAT, nil, base)
	insertTestQuestion(t, s, "new", model.TypeMCQ, []string{"Paris", "London"}, base.Add(time.Hour))
	insertTestQuestion(t, s, "mid", model.TypeSUB, nil, base.Add(time.Minute))

	list, err = s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(list))
	}

	// Most recent first.
	var ids []string
	for _, q := range list {
		ids = append(ids, q.ID)
	}
	if !reflect.DeepEqual(ids, []string{"new", "mid", "old"}) {
		t.Errorf("unexpected order %v", ids)
	}

	first := list[0]
	if first.Type != model.TypeMCQ {
		t.Errorf("expected type MCQ, got %q", first.Type)
	}
	if !reflect.DeepEqual(first.Options, []string{"Paris", "London"}) {
		t.Errorf("options did not round-trip: %v", first.Options)
	}
	if first.IsWrong != nil {
		t.Error("new question should not be judged")
	}
	if list[2].Options != nil {
		t.Errorf("NAT question should have no options, got %v", list[2].Options)
	}
}

func TestPersistVerdict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestQuestion(t, s, "q1", model.TypeMCQ, []string{"a", "b"}, time.Now())

	if err := s.PersistVerdict(ctx, "q1", true); err != nil {
		t.Fatalf("PersistVerdict: %v", err)
	}
	list, _ := s.FetchAll(ctx)
	if list[0].IsWrong == nil || !*list[0].IsWrong {
		t.Fatal("expected is_wrong = true")
	}
	// Other fields are untouched.
	if list[0].Statement != "statement q1" || !reflect.DeepEqual(list[0].Options, []string{"a", "b"}) {
		t.Errorf("persist touched other fields: %+v", list[0])
	}

	if err := s.PersistVerdict(ctx, "q1", false); err != nil {
		t.Fatalf("PersistVerdict: %v", err)
	}
	list, _ = s.FetchAll(ctx)
	if list[0].IsWrong == nil || *list[0].IsWrong {
		t.Fatal("expected is_wrong = false")
	}

	// Unknown id.
	if err := s.PersistVerdict(ctx, "missing", true); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestDecodeOptions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"sql null", "", nil, false},
		{"json null", "null", nil, false},
		{"empty array", "[]", nil, false},
		{"array", `["Paris","London"]`, []string{"Paris", "London"}, false},
		{"padded", `  ["a"]  `, []string{"a"}, false},
		{"double encoded", `"[\"Paris\",\"London\"]"`, []string{"Paris", "London"}, false},
		{"numbers", `[1, 2.5, "3"]`, []string{"1", "2.5", "3"}, false},
		{"mixed", `[true, "x"]`, []string{"true", "x"}, false},
		{"plain text", `"Paris"`, nil, true},
		{"object", `{"a":1}`, nil, true},
		{"garbage", `[1,`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOptions([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeOptions(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeOptions(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash(ctx, "/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	// Set hash.
	if err := s.SetImportedFileHash(ctx, "/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash(ctx, "/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash(ctx, "/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash(ctx, "/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestImportQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte(`[
		{"id": "q1", "statement": "Capital of France?", "type": "MCQ", "options": ["Paris", "London"]},
		{"statement": "What is 2+2?", "type": "nat"}
	]`)

	res, err := s.ImportQuestions(ctx, "questions.json", data)
	if err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}
	if res.Imported != 2 || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}

	list, _ := s.FetchAll(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(list))
	}
	// File order survives most-recent-first listing.
	if list[0].ID != "q1" {
		t.Errorf("expected q1 first, got %q", list[0].ID)
	}
	if list[1].ID == "" || list[1].Type != model.TypeNAT {
		t.Errorf("expected generated id and upper-cased type, got %+v", list[1])
	}

	// Same content is skipped.
	res, err = s.ImportQuestions(ctx, "questions.json", data)
	if err != nil {
		t.Fatalf("ImportQuestions again: %v", err)
	}
	if !res.Skipped {
		t.Error("expected unchanged file to be skipped")
	}

	// Changed content for an existing id clears its verdict.
	if err := s.PersistVerdict(ctx, "q1", true); err != nil {
		t.Fatalf("PersistVerdict: %v", err)
	}
	changed := []byte(`[{"id": "q1", "statement": "Capital of Germany?", "type": "MCQ", "options": ["Paris", "Berlin"]}]`)
	if _, err := s.ImportQuestions(ctx, "questions.json", changed); err != nil {
		t.Fatalf("ImportQuestions changed: %v", err)
	}
	list, _ = s.FetchAll(ctx)
	for _, q := range list {
		if q.ID == "q1" {
			if q.IsWrong != nil {
				t.Error("changed question should lose its verdict")
			}
			if q.Statement != "Capital of Germany?" {
				t.Errorf("statement not updated: %q", q.Statement)
			}
		}
	}
}

func TestImportQuestionsYAML(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte(`
- id: y1
  statement: Prove that sqrt(2) is irrational.
  type: SUB
- id: y2
  statement: Which are primes?
  type: MSQ
  options: ["2", "3", "4"]
`)
	res, err := s.ImportQuestions(ctx, "questions.yaml", data)
	if err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}
	if res.Imported != 2 {
		t.Fatalf("expected 2 imported, got %d", res.Imported)
	}
	list, _ := s.FetchAll(ctx)
	if !reflect.DeepEqual(list[1].Options, []string{"2", "3", "4"}) {
		t.Errorf("unexpected options %v", list[1].Options)
	}
}

func TestImportQuestionsRejectsEmptyStatement(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ImportQuestions(context.Background(), "bad.json", []byte(`[{"id":"x","type":"NAT"}]`))
	if err == nil {
		t.Fatal("expected error for empty statement")
	}
	count, _ := s.QuestionCount(context.Background())
	if count != 0 {
		t.Errorf("failed import should insert nothing, got %d", count)
	}
}

func TestExportVerdicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestQuestion(t, s, "a", model.TypeNAT, nil, time.Now())
	insertTestQuestion(t, s, "b", model.TypeSUB, nil, time.Now().Add(time.Second))
	insertTestQuestion(t, s, "c", model.TypeSUB, nil, time.Now().Add(2*time.Second))
	_ = s.PersistVerdict(ctx, "a", true)
	_ = s.PersistVerdict(ctx, "b", false)

	export, err := ExportVerdicts(ctx, s)
	if err != nil {
		t.Fatalf("ExportVerdicts: %v", err)
	}
	if export.Source != "sqlite" {
		t.Errorf("unexpected source %q", export.Source)
	}
	want := model.StatusCounts{NotChecked: 1, Correct: 1, Wrong: 1}
	if export.Counts != want {
		t.Errorf("counts = %+v, want %+v", export.Counts, want)
	}
	if len(export.Questions) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(export.Questions))
	}
}

func TestUnavailable(t *testing.T) {
	u := Unavailable{Reason: "no database URL"}
	if _, err := u.FetchAll(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("FetchAll error = %v", err)
	}
	if err := u.PersistVerdict(context.Background(), "1", true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("PersistVerdict error = %v", err)
	}
	if _, err := ExportVerdicts(context.Background(), u); err == nil {
		t.Error("export from unavailable store should fail")
	}
}
