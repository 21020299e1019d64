package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/qchecker/internal/checker"
	"github.com/pavelanni/qchecker/internal/handler"
	appI18n "github.com/pavelanni/qchecker/internal/i18n"
	"github.com/pavelanni/qchecker/internal/model"
	"github.com/pavelanni/qchecker/internal/store"
	"github.com/pavelanni/qchecker/internal/validator"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qchecker",
		Short: "AI-assisted validity checker for exam questions",
	}

	serve := serveCmd()
	root.AddCommand(serve, checkCmd(), importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `qchecker --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("store", "sqlite", "Question store backend (sqlite, postgres)")
	f.String("db", "qchecker.db", "SQLite database path")
	f.String("database-url", "", "Postgres connection URL (or set QCHECKER_DATABASE_URL)")
	f.String("table", store.DefaultTable, "Postgres question table")
}

func addAIFlags(f *pflag.FlagSet) {
	f.String("ai-provider", "gemini", "AI provider (gemini, openai)")
	f.String("gemini-key", "", "Gemini API key (or set QCHECKER_GEMINI_KEY)")
	f.String("gemini-model", "gemini-2.0-flash", "Gemini model name")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the OpenAI-compatible endpoint")
	f.String("llm-model", "llama3.2", "Model name for the OpenAI-compatible endpoint")
	f.Duration("check-timeout", 0, "Deadline for a single question check (0 = none)")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the question checker dashboard",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /qc)")
	addStoreFlags(f)
	addAIFlags(f)
	addLogFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import questions from JSON or YAML files into the SQLite store",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "qchecker.db", "SQLite database path")
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export questions and their verdicts as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QCHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("qchecker")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/qchecker")
	v.AddConfigPath("/etc/qchecker")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// normalizeBasePath returns "" or a path with a leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Missing storage or AI configuration degrades the dashboard instead of
	// stopping it.
	gw, err := openGateway(ctx, v)
	if err != nil {
		slog.Warn("question store unavailable", "error", err)
		gw = store.Unavailable{Reason: err.Error()}
	}
	defer gw.Close()

	ai, closeAI := openCompleter(ctx, v)
	defer closeAI()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	basePath := normalizeBasePath(v.GetString("base-path"))
	cfg := model.Config{
		BasePath:     basePath,
		CheckTimeout: v.GetDuration("check-timeout"),
		AIProvider:   strings.ToLower(v.GetString("ai-provider")),
		AIModel:      aiModel(v),
		StoreKind:    gw.Name(),
	}

	chk := checker.New(gw, validator.New(ai), checker.WithCheckTimeout(cfg.CheckTimeout))
	if err := chk.Reload(ctx); err != nil {
		// Shown on the dashboard with a retry button.
		slog.Warn("initial load failed", "error", err)
	}

	h, err := handler.New(ctx, chk, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"store", cfg.StoreKind,
		"ai_provider", cfg.AIProvider,
		"model", cfg.AIModel,
		"lang", lang,
		"check_timeout", cfg.CheckTimeout,
		"base_path", basePath,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	total := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := db.ImportQuestions(ctx, path, data)
		if err != nil {
			return err
		}
		total += res.Imported
	}
	count, err := db.QuestionCount(ctx)
	if err != nil {
		return err
	}
	slog.Info("import finished", "imported", total, "questions_in_store", count)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	gw, err := openGateway(ctx, v)
	if err != nil {
		return err
	}
	defer gw.Close()

	export, err := store.ExportVerdicts(ctx, gw)
	if err != nil {
		return fmt.Errorf("export verdicts: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
