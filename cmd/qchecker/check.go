package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pavelanni/qchecker/internal/checker"
	"github.com/pavelanni/qchecker/internal/model"
	"github.com/pavelanni/qchecker/internal/validator"
)

const statementPreview = 60

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every question once and print the verdicts",
		RunE:  runCheck,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	addAIFlags(f)
	f.Bool("fail-on-wrong", false, "Exit with an error when any question is wrong or failed to check")
	f.Bool("no-color", false, "Disable colored output")
	addLogFlags(f)
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := openGateway(ctx, v)
	if err != nil {
		return err
	}
	defer gw.Close()

	ai, closeAI := openCompleter(ctx, v)
	defer closeAI()

	chk := checker.New(gw, validator.New(ai), checker.WithCheckTimeout(v.GetDuration("check-timeout")))
	if err := chk.Reload(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	noColor := v.GetBool("no-color")
	questions := make(map[string]model.Question)
	for _, it := range chk.Snapshot().Items {
		questions[it.Question.ID] = it.Question
	}

	events, cancel := chk.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printResults(out, events, questions, noColor)
	}()

	runErr := chk.CheckAll(ctx)
	cancel()
	wg.Wait()

	st := chk.Snapshot()
	fmt.Fprintln(out, formatSummary(st.Counts, noColor))
	if st.LastError != "" {
		fmt.Fprintln(out, stylize("last error: "+st.LastError, noColor, lipgloss.Color("196")))
	}
	if runErr != nil {
		return fmt.Errorf("check interrupted: %w", runErr)
	}
	if v.GetBool("fail-on-wrong") {
		if bad := st.Counts.Wrong + st.Counts.Error; bad > 0 {
			return fmt.Errorf("%d of %d questions are wrong or could not be checked", bad, len(st.Items))
		}
	}
	return nil
}

// printResults writes one line per finished check until events is closed.
func printResults(w io.Writer, events <-chan checker.Event, questions map[string]model.Question, noColor bool) {
	for e := range events {
		if e.Type != checker.EventChecked && e.Type != checker.EventFailed {
			continue
		}
		fmt.Fprintln(w, formatResult(questions[e.QuestionID], e.Status, e.Error, noColor))
	}
}

func formatResult(q model.Question, status model.Status, errMsg string, noColor bool) string {
	line := fmt.Sprintf("%s %-11s %-4s %s  %s",
		statusMark(status), status, q.Type, q.ID, preview(q.Statement))
	if errMsg != "" {
		line += "  (" + errMsg + ")"
	}
	return stylize(line, noColor, statusColor(status))
}

func formatSummary(c model.StatusCounts, noColor bool) string {
	line := fmt.Sprintf("correct: %d  wrong: %d  errors: %d  not checked: %d",
		c.Correct, c.Wrong, c.Error, c.NotChecked)
	return stylize(line, noColor, lipgloss.Color("252"))
}

func statusMark(s model.Status) string {
	switch s {
	case model.StatusCorrect:
		return "✓"
	case model.StatusWrong:
		return "✗"
	case model.StatusError:
		return "!"
	default:
		return "·"
	}
}

func statusColor(s model.Status) lipgloss.Color {
	switch s {
	case model.StatusCorrect:
		return lipgloss.Color("42")
	case model.StatusWrong:
		return lipgloss.Color("196")
	case model.StatusError:
		return lipgloss.Color("220")
	default:
		return lipgloss.Color("244")
	}
}

// preview collapses whitespace and shortens s for a single output line.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= statementPreview {
		return s
	}
	r := []rune(s)
	return string(r[:statementPreview-1]) + "…"
}

func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
