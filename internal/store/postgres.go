package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/pavelanni/qchecker/internal/model"
)

// DefaultTable is the question table of the hosted datastore.
const DefaultTable = "new_questions"

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Postgres is a question gateway over a remote Postgres table with the
// columns id, question_statement, question_type, options, is_wrong and
// created_at. The id column may be any type with a text rendering; options
// may be jsonb, json, text[] or text holding JSON.
type Postgres struct {
	db    *sql.DB
	table string
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("database URL is empty")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{db: db, table: table}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Name identifies the backend in logs and exports.
func (p *Postgres) Name() string { return "postgres:" + p.table }

// FetchAll returns all questions, most recent first.
func (p *Postgres) FetchAll(ctx context.Context) ([]model.Question, error) {
	q := `
select id::text,
       coalesce(question_statement, ''),
       coalesce(question_type, ''),
       to_jsonb(options)::text,
       is_wrong,
       coalesce(created_at, now())
from ` + p.table + `
order by created_at desc nulls last, id`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			item    model.Question
			opts    sql.NullString
			isWrong sql.NullBool
		)
		if err := rows.Scan(&item.ID, &item.Statement, &item.Type, &opts, &isWrong, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.table, err)
		}
		if item.Options, err = DecodeOptions([]byte(opts.String)); err != nil {
			return nil, fmt.Errorf("question %s: %w", item.ID, err)
		}
		if isWrong.Valid {
			item.IsWrong = model.Bool(isWrong.Bool)
		}
		questions = append(questions, item)
	}
	return questions, rows.Err()
}

// PersistVerdict updates only the is_wrong column of one row.
func (p *Postgres) PersistVerdict(ctx context.Context, id string, isWrong bool) error {
	res, err := p.db.ExecContext(ctx, `update `+p.table+` set is_wrong = $1 where id::text = $2`, isWrong, id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", p.table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s %s: %w", p.table, id, sql.ErrNoRows)
	}
	return nil
}
