// Command salesforecast trains the LSTM and gradient boosted tree ensemble on daily sales, writes the
// forecast files, answers questions about the sales and serves both over HTTP.
//
// Usage:
//
//	salesforecast [-profile cpu|mem] forecast
//	salesforecast chat
//	salesforecast serve
//	salesforecast token [-subject name] [-ttl 24h]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/insight"
	"github.com/aouyang1/go-salesforecast/internal/app"
	"github.com/aouyang1/go-salesforecast/internal/config"
	"github.com/aouyang1/go-salesforecast/internal/metrics"
	"github.com/aouyang1/go-salesforecast/internal/server"
	"github.com/aouyang1/go-salesforecast/sales"

	"github.com/joho/godotenv"
	"github.com/pkg/profile"
)

const shutdownTimeout = 10 * time.Second

var (
	ErrNoCommand      = errors.New("expected one of forecast, chat, serve or token")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownProfile = errors.New("profile must be cpu or mem")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		slog.Error("salesforecast failed", "error", err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("salesforecast", flag.ContinueOnError)
	fs.SetOutput(stdout)
	profileMode := fs.String("profile", "", "write a cpu or mem profile to the output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return ErrNoCommand
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err.Error())
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: lvl})))

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.OutputDir), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(cfg.OutputDir), profile.Quiet).Stop()
	default:
		return fmt.Errorf("%q, %w", *profileMode, ErrUnknownProfile)
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if cmd == "token" {
		return runToken(cfg, cmdArgs, stdout)
	}

	loader, closeLoader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLoader()

	switch cmd {
	case "forecast":
		return runForecast(ctx, cfg, loader, stdout)
	case "chat":
		return runChat(ctx, cfg, loader, stdin, stdout)
	case "serve":
		return runServe(ctx, cfg, loader)
	default:
		return fmt.Errorf("%q, %w", cmd, ErrUnknownCommand)
	}
}

// newLoader reads from Postgres when a database is configured and from the sales CSV otherwise
func newLoader(ctx context.Context, cfg *config.Config) (app.Loader, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("reading sales file", "path", cfg.DataPath)
		return app.CSVLoader{Path: cfg.DataPath, Options: cfg.ReadOptions()}, func() {}, nil
	}

	pool, err := sales.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("reading sales from postgres", "history_days", cfg.HistoryDays)
	loader := app.PGLoader{
		Source: sales.NewPGSource(pool, cfg.DatabaseQuery),
		Days:   cfg.HistoryDays,
	}
	return loader, pool.Close, nil
}

func newService(ctx context.Context, cfg *config.Config, loader app.Loader, opts ...app.Option) (*app.Service, func(), error) {
	opt, err := cfg.ForecastOptions()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if cfg.GeminiAPIKey != "" {
		gen, err := insight.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if err := gen.Close(); err != nil {
				slog.Warn("unable to close gemini client", "error", err.Error())
			}
		}
		opts = append(opts, app.WithGenerator(gen), app.WithQueryTimeout(cfg.GeminiTimeout))
	}

	svc, err := app.New(loader, opt, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func runForecast(ctx context.Context, cfg *config.Config, loader app.Loader, stdout io.Writer) error {
	svc, cleanup, err := newService(ctx, cfg, loader)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}
	if err := report.WriteFiles(cfg.OutputDir); err != nil {
		return err
	}

	if err := report.Forecaster().TablePrint(stdout); err != nil {
		return err
	}
	return printSummary(stdout, report.Summary)
}

func printSummary(w io.Writer, summary []forecaster.ForecastSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Model\tAverage\tMin\tMax\tGrowth %")
	for _, s := range summary {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\n", s.Model, s.Average, s.Min, s.Max, s.Growth)
	}
	return tw.Flush()
}

func runChat(ctx context.Context, cfg *config.Config, loader app.Loader, stdin io.Reader, stdout io.Writer) error {
	if cfg.GeminiAPIKey == "" {
		return insight.ErrNoAPIKey
	}
	svc, cleanup, err := newService(ctx, cfg, loader)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintln(stdout, "Ask a question about the sales data, or type exit to quit. For example:")
	for _, q := range insight.SampleQuestions {
		fmt.Fprintf(stdout, "  - %s\n", q)
	}

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "exit", "quit":
			return nil
		}

		answer, err := svc.Query(ctx, question)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, answer)
	}
}

func runServe(ctx context.Context, cfg *config.Config, loader app.Loader) error {
	m := metrics.NewManager()
	svc, cleanup, err := newService(ctx, cfg, loader, app.WithMetrics(m))
	if err != nil {
		return err
	}
	defer cleanup()

	go func() {
		if _, err := svc.Refresh(ctx); err != nil {
			slog.Error("initial forecast failed", "error", err.Error())
		}
	}()

	srv := server.New(svc, server.WithMetrics(m), server.WithJWTSecret(cfg.JWTSecret))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runToken(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stdout)
	subject := fs.String("subject", "analyst", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := server.NewToken(cfg.JWTSecret, *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
