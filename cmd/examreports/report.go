package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appI18n "github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/session"
	"github.com/pavelanni/examreports/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one page of an exam's user report as CSV",
		RunE:  runExport,
	}
	backendFlags(cmd)
	f := cmd.Flags()
	f.String("schedule", "", "Exam schedule id (required)")
	f.Int("page", 1, "Report page to export")
	f.String("search", "", "Free-text search applied to the report")
	f.StringP("output", "o", "", "Output file path (default: the export file name, - for stdout)")
	_ = cmd.MarkFlagRequired("schedule")
	return cmd
}

func analyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the category analytics of an exam as JSON",
		RunE:  runAnalytics,
	}
	backendFlags(cmd)
	f := cmd.Flags()
	f.String("schedule", "", "Exam schedule id (required)")
	f.String("category", "", "Only print questions of this category")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("schedule")
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Print a user's review attempts for an exam as JSON",
		RunE:  runReview,
	}
	backendFlags(cmd)
	f := cmd.Flags()
	f.String("schedule", "", "Exam schedule id (required)")
	f.String("user", "", "User id (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// noticeLog collects the notices raised during a one-shot command.
type noticeLog struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (l *noticeLog) Notify(n model.Notice) {
	slog.Warn("notice", "message", n.Message)
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

// err returns the first notice as an error, or nil.
func (l *noticeLog) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.notices) == 0 {
		return nil
	}
	return errors.New(l.notices[0].Message)
}

// cliSession is a report session for a single command run.
type cliSession struct {
	*session.Session
	notices *noticeLog
	db      *store.Store
}

func (c *cliSession) Close() error { return c.db.Close() }

func newCLISession(v *viper.Viper) (*cliSession, error) {
	cfg := reportConfig(v)
	if err := appI18n.Init(cfg.Lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	bc, err := newBackend(v)
	if err != nil {
		return nil, err
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log := &noticeLog{}
	s := session.New(session.Options{
		Backend:     bc,
		Notifier:    log,
		Preferences: db,
		Exports:     db,
		Online:      bc.Online,
		PageSize:    cfg.PageSize,
		InstituteID: cfg.InstituteID,
	})
	return &cliSession{Session: s, notices: log, db: db}, nil
}

// openOutput returns stdout for "" or "-", else a created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeJSONTo(path string, v any) error {
	w, err := openOutput(path)
	if err != nil {
		return err
	}
	defer w.Close()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cs, err := newCLISession(v)
	if err != nil {
		return err
	}
	defer cs.Close()
	ctx := context.Background()

	cs.SelectExam(ctx, v.GetString("schedule"))
	if q := v.GetString("search"); q != "" {
		if err := cs.Search(ctx, q); err != nil {
			return err
		}
	}
	if page := v.GetInt("page"); page > 1 {
		if err := cs.LoadUserReport(ctx, page); err != nil {
			return err
		}
	}
	if err := cs.notices.err(); err != nil {
		return err
	}

	out, err := cs.ExportCSV(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	path := v.GetString("output")
	if path == "" {
		path = out.FileName
	}
	w, err := openOutput(path)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := w.Write(out.Data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info(appI18n.Tp(ctx, appI18n.ExportedRows, out.Rows), "file", path)
	return nil
}

func runAnalytics(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cs, err := newCLISession(v)
	if err != nil {
		return err
	}
	defer cs.Close()
	ctx := context.Background()

	cs.SetTab(ctx, model.TabCategoryReport)
	cs.SelectExam(ctx, v.GetString("schedule"))
	if err := cs.notices.err(); err != nil {
		return err
	}

	a, _ := cs.Analytics()
	questions := a.Questions
	if category := v.GetString("category"); category != "" {
		if err := cs.RequestCategoryFilter(ctx, category); err != nil {
			return err
		}
		_, _, _, questions = cs.CategoryFilter()
	}
	return writeJSONTo(v.GetString("output"), map[string]any{
		"categories": a.Categories,
		"questions":  questions,
	})
}

func runReview(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cs, err := newCLISession(v)
	if err != nil {
		return err
	}
	defer cs.Close()
	ctx := context.Background()

	cs.SelectExam(ctx, v.GetString("schedule"))
	if err := cs.OpenUserReview(ctx, v.GetString("user")); err != nil {
		return err
	}
	if err := cs.notices.err(); err != nil {
		return err
	}
	return writeJSONTo(v.GetString("output"), cs.Review())
}
