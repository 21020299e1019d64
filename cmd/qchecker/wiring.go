package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pavelanni/qchecker/internal/checker"
	"github.com/pavelanni/qchecker/internal/llm"
	"github.com/pavelanni/qchecker/internal/store"
	"github.com/pavelanni/qchecker/internal/validator"
)

const pingTimeout = 10 * time.Second

// gateway is a question store the commands can check against and export from.
type gateway interface {
	checker.Gateway
	store.Source
	Close() error
}

// openGateway opens the store selected by the "store" setting.
func openGateway(ctx context.Context, v *viper.Viper) (gateway, error) {
	switch kind := strings.ToLower(strings.TrimSpace(v.GetString("store"))); kind {
	case "", "sqlite":
		db, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	case "postgres", "postgresql":
		dsn := strings.TrimSpace(v.GetString("database-url"))
		if dsn == "" {
			return nil, fmt.Errorf("%w: no database URL", store.ErrNotConfigured)
		}
		pg, err := store.NewPostgres(ctx, dsn, v.GetString("table"))
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want sqlite or postgres)", kind)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// openCompleter builds the AI client selected by "ai-provider". Missing
// credentials give an llm.Unconfigured completer so that each check fails
// with a visible error. The returned func releases the client.
func openCompleter(ctx context.Context, v *viper.Viper) (validator.Completer, func()) {
	noop := func() {}

	var (
		ai      validator.Completer
		release = noop
	)
	switch provider := strings.ToLower(strings.TrimSpace(v.GetString("ai-provider"))); provider {
	case "", "gemini":
		g, err := llm.NewGemini(ctx, v.GetString("gemini-key"), v.GetString("gemini-model"))
		if err != nil {
			slog.Warn("Gemini client unavailable", "error", err)
			return llm.Unconfigured{Reason: err.Error()}, noop
		}
		ai = g
		release = func() {
			if err := g.Close(); err != nil {
				slog.Warn("close Gemini client", "error", err)
			}
		}
	case "openai":
		if strings.TrimSpace(v.GetString("llm-model")) == "" {
			return llm.Unconfigured{Reason: "no model name"}, noop
		}
		ai = llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	default:
		reason := fmt.Sprintf("unknown AI provider %q (want gemini or openai)", provider)
		slog.Warn("AI client unavailable", "error", reason)
		return llm.Unconfigured{Reason: reason}, noop
	}

	if p, ok := ai.(pinger); ok {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pctx); err != nil {
			slog.Warn("AI endpoint health check failed", "error", err)
		} else {
			slog.Info("AI endpoint OK", "model", aiModel(v))
		}
	}
	return ai, release
}

// aiModel returns the model name of the selected provider.
func aiModel(v *viper.Viper) string {
	if strings.EqualFold(strings.TrimSpace(v.GetString("ai-provider")), "openai") {
		return v.GetString("llm-model")
	}
	return v.GetString("gemini-model")
}
