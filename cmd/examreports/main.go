package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/handler"
	appI18n "github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/llm"
	"github.com/pavelanni/examreports/internal/llm/prompts"
	"github.com/pavelanni/examreports/internal/metrics"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examreports",
		Short: "Exam reporting dashboard over the exam backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), analyticsCmd(), reviewCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examreports --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// backendFlags registers the flags shared by every command that talks to
// the exam backend.
func backendFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend-url", "http://localhost:3000/api", "Exam backend base URL")
	f.Float64("backend-rps", 10, "Maximum backend requests per second (0 = unlimited)")
	f.Int("page-size", 25, "User report page size")
	f.String("institute", "", "Institute id (default: last used, else the first listed)")
	f.String("db", "examreports.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE:  runServe,
	}
	backendFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /reports)")
	f.StringSlice("cors-origins", []string{"http://localhost:5173"}, "Allowed CORS origins (repeatable)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables insights)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("insight-variant", string(prompts.VariantBrief), "Wrong-answer insight prompt variant (brief, detailed)")
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

	v.SetEnvPrefix("EXAMREPORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examreports")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examreports")
	v.AddConfigPath("/etc/examreports")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// reportConfig reads the report parameters shared by all commands.
func reportConfig(v *viper.Viper) model.ReportConfig {
	return model.ReportConfig{
		BackendURL:  v.GetString("backend-url"),
		PageSize:    v.GetInt("page-size"),
		InstituteID: v.GetString("institute"),
		Lang:        v.GetString("lang"),
	}
}

func newBackend(v *viper.Viper) (*backend.Client, error) {
	rps := v.GetFloat64("backend-rps")
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c, err := backend.New(v.GetString("backend-url"), backend.WithRateLimit(rps, burst))
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	return c, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := reportConfig(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	bc, err := newBackend(v)
	if err != nil {
		return err
	}

	var llmClient *llm.Client
	if llmURL := v.GetString("llm-url"); llmURL != "" {
		variant := strings.ToLower(strings.TrimSpace(v.GetString("insight-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid insight-variant, using brief", "variant", variant)
			variant = string(prompts.VariantBrief)
		}
		llmClient, err = llm.New(llmURL, v.GetString("llm-key"), v.GetString("llm-model"), variant)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		slog.Info("wrong-answer insights enabled", "url", llmURL, "model", v.GetString("llm-model"))
	}

	h, err := handler.New(db, llmClient, bc, bc.Online, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	ctx := context.Background()
	h.Session().LoadFilterOptions(ctx)
	h.Session().LoadInstitutes(ctx)

	metrics.Register(prometheus.DefaultRegisterer)

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Insight-Cache"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware)
	r.Handle("/metrics", promhttp.Handler())

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"backend_url", cfg.BackendURL,
		"page_size", cfg.PageSize,
		"institute", cfg.InstituteID,
		"lang", cfg.Lang,
		"insights", llmClient != nil,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}
