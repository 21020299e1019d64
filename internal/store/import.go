package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/qchecker/internal/model"
)

// ImportResult summarizes one ImportQuestions call.
type ImportResult struct {
	Imported int
	Skipped  bool // file content unchanged since the last import
}

// ParseQuestionFile decodes a JSON or YAML list of questions, chosen by the
// file extension of name.
func ParseQuestionFile(name string, data []byte) ([]model.QuestionImport, error) {
	var questions []model.QuestionImport
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return questions, nil
}

// ImportQuestions inserts the questions of a JSON or YAML file in a single
// transaction. A file whose content hash matches the last import of the same
// path is skipped. Questions without an id get a random UUID; re-importing an
// existing id with changed content clears its verdict.
func (s *Store) ImportQuestions(ctx context.Context, path string, data []byte) (ImportResult, error) {
	hash := sha256sum(data)
	storedHash, err := s.GetImportedFileHash(ctx, path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("questions file unchanged, skipping", "path", path)
		return ImportResult{Skipped: true}, nil
	}

	items, err := ParseQuestionFile(path, data)
	if err != nil {
		return ImportResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	for i, qi := range items {
		if strings.TrimSpace(qi.Statement) == "" {
			return ImportResult{}, fmt.Errorf("%s: question %d has no statement", path, i+1)
		}
		id := strings.TrimSpace(qi.ID)
		if id == "" {
			id = uuid.NewString()
		}
		opts, err := EncodeOptions(qi.Options)
		if err != nil {
			return ImportResult{}, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id, statement, type, options, is_wrong, created_at)
			 VALUES (?, ?, ?, ?, NULL, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   is_wrong = CASE
			     WHEN questions.statement = excluded.statement
			      AND questions.type = excluded.type
			      AND questions.options IS excluded.options THEN questions.is_wrong
			     ELSE NULL END,
			   statement = excluded.statement,
			   type = excluded.type,
			   options = excluded.options`,
			// Earlier entries get later timestamps so the file order survives
			// most-recent-first listing.
			id, qi.Statement, strings.ToUpper(strings.TrimSpace(string(qi.Type))), opts,
			now.Add(-time.Duration(i)*time.Millisecond),
		)
		if err != nil {
			return ImportResult{}, fmt.Errorf("insert question %s from %s: %w", id, path, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		importHashPrefix+path, hash,
	); err != nil {
		return ImportResult{}, fmt.Errorf("record import for %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, err
	}

	slog.Info("imported questions", "path", path, "count", len(items))
	return ImportResult{Imported: len(items)}, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
