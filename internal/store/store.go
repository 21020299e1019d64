package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/qchecker/internal/model"

	_ "modernc.org/sqlite"
)

// Store is a question gateway backed by a local SQLite database.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		statement TEXT NOT NULL,
		type TEXT NOT NULL,
		options TEXT,
		is_wrong INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Name identifies the backend in logs and exports.
func (s *Store) Name() string { return "sqlite" }

// InsertQuestion stores a question. A zero CreatedAt is set to now.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) error {
	opts, err := EncodeOptions(q.Options)
	if err != nil {
		return err
	}
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var isWrong any
	if q.IsWrong != nil {
		isWrong = *q.IsWrong
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id, statement, type, options, is_wrong, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.Statement, q.Type, opts, isWrong, createdAt,
	)
	return err
}

// FetchAll returns all questions, most recent first.
func (s *Store) FetchAll(ctx context.Context) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, statement, type, options, is_wrong, created_at
		 FROM questions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var (
			q       model.Question
			opts    sql.NullString
			isWrong sql.NullBool
		)
		if err := rows.Scan(&q.ID, &q.Statement, &q.Type, &opts, &isWrong, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if q.Options, err = DecodeOptions([]byte(opts.String)); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		if isWrong.Valid {
			q.IsWrong = model.Bool(isWrong.Bool)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// PersistVerdict updates only the is_wrong column of one question.
func (s *Store) PersistVerdict(ctx context.Context, id string, isWrong bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET is_wrong = ? WHERE id = ?`, isWrong, id)
	if err != nil {
		return fmt.Errorf("update question %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update question %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// EncodeOptions renders options as a JSON array, or NULL when empty.
func EncodeOptions(options []string) (any, error) {
	if len(options) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}
