package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/qchecker/internal/model"
)

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("storage not configured")

// Source is a named read-only view of a question table.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]model.Question, error)
}

// ExportVerdicts builds an export of every question and its persisted
// verdict from src.
func ExportVerdicts(ctx context.Context, src Source) (model.VerdictExport, error) {
	questions, err := src.FetchAll(ctx)
	if err != nil {
		return model.VerdictExport{}, fmt.Errorf("fetch questions: %w", err)
	}

	export := model.VerdictExport{
		ExportedAt: time.Now().UTC(),
		Source:     src.Name(),
		Questions:  make([]model.VerdictEntry, 0, len(questions)),
	}
	for _, q := range questions {
		status := model.DeriveStatus(false, q)
		export.Counts.Add(status)
		export.Questions = append(export.Questions, model.VerdictEntry{
			ID:        q.ID,
			Type:      q.Type,
			Statement: q.Statement,
			Options:   q.Options,
			Status:    status,
			CreatedAt: q.CreatedAt,
		})
	}
	return export, nil
}

// Unavailable is the gateway used when no storage is configured. Every call
// fails with ErrNotConfigured so the dashboard shows a load error.
type Unavailable struct {
	Reason string
}

func (u Unavailable) err() error {
	if u.Reason != "" {
		return fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
	}
	return ErrNotConfigured
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) FetchAll(context.Context) ([]model.Question, error) {
	return nil, u.err()
}

func (u Unavailable) PersistVerdict(context.Context, string, bool) error {
	return u.err()
}

func (u Unavailable) Close() error { return nil }
