package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-parser/internal/api"
	"github.com/insightdelivered/statement-parser/internal/config"
	"github.com/insightdelivered/statement-parser/internal/extractor"
	"github.com/insightdelivered/statement-parser/internal/logger"
	"github.com/insightdelivered/statement-parser/internal/metrics"
	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/parser"
	"github.com/insightdelivered/statement-parser/internal/rules"
	"github.com/insightdelivered/statement-parser/internal/writer"
)

const version = "2.0.0"

// job carries the per-run settings shared by every input file.
type job struct {
	bank          models.BankType
	format        string
	output        string
	includeHeader bool
	opts          parser.Options
	extractor     *extractor.Extractor
}

var stdoutMu sync.Mutex

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("Configuration error: %v\n", err)
	}

	// CLI flags
	bankFlag := flag.String("bank", "", "Bank type: chase (auto-detected if omitted)")
	yearFlag := flag.Int("year", cfg.Parser.DefaultYear, "Statement year for MM/DD dates (inferred from the statement period if 0)")
	formatFlag := flag.String("format", writer.FormatCSV, "Output format: csv, json or xlsx")
	outputFlag := flag.String("output", "", "Output file path (defaults to input filename with the format's extension)")
	headerFlag := flag.Bool("header", true, "Include statement metadata rows in the output")
	debugFlag := flag.Bool("debug", false, "Log what happened to every input line")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank Statement Transaction Extractor
by Insight Delivered

Extracts dated, signed transactions from Chase checking statements
(English and Spanish) into CSV, JSON or Excel files.

Usage:
  statement-parser [flags] <statement.pdf|statement.txt> [more ...]
  statement-parser -serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect bank and convert
  statement-parser statement.pdf

  # Pre-extracted text, statement year given explicitly
  statement-parser -year=2024 statement.txt

  # Excel output to a chosen path
  statement-parser -format=xlsx -output=june.xlsx statement.pdf

  # Convert several statements in parallel
  statement-parser jan.pdf feb.pdf mar.pdf

Environment:
  SERVER_HOST, SERVER_PORT, LOG_LEVEL, LOG_FORMAT, PARSER_RULES_FILE,
  PARSER_BLANK_LINE_LIMIT, PARSER_DEFAULT_YEAR, PARSER_MAX_WORKERS
  (a .env file in the working directory is read first)
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement-parser v%s\n", version)
		os.Exit(0)
	}

	logLevel := cfg.Log.Level
	if *debugFlag {
		logLevel = "debug"
	}
	log := logger.NewWithOptions(os.Stderr, logLevel, cfg.Log.Format)

	r, err := loadRules(cfg.Parser.RulesFile)
	if err != nil {
		fatalf("Rules error: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	if *serveFlag {
		if err := serve(ctx, cfg, r, log); err != nil {
			fatalf("Server error: %v\n", err)
		}
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	inputFiles := flag.Args()
	if *outputFlag != "" && len(inputFiles) > 1 {
		fatalf("-output can only be used with a single input file\n")
	}
	if _, err := writer.New(*formatFlag, *headerFlag); err != nil {
		fatalf("%v\n", err)
	}

	var bankType models.BankType
	if *bankFlag != "" {
		bankType = models.BankType(strings.ToLower(*bankFlag))
		if _, err := parser.New(bankType, parser.Options{Rules: r}); err != nil {
			fatalf("Unknown bank type %q. Supported: chase\n", *bankFlag)
		}
	}

	j := job{
		bank:          bankType,
		format:        *formatFlag,
		output:        *outputFlag,
		includeHeader: *headerFlag,
		opts: parser.Options{
			Year:           *yearFlag,
			BlankLineLimit: cfg.Parser.BlankLineLimit,
			Rules:          r,
			Debug:          *debugFlag,
		},
		extractor: extractor.New(log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parser.MaxWorkers)
	for _, inputPath := range inputFiles {
		g.Go(func() error {
			if err := processFile(gctx, inputPath, j); err != nil {
				return fmt.Errorf("%s: %w", inputPath, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("Error processing %v\n", err)
	}
}

func loadRules(path string) (*rules.Rules, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.Load(path)
}

func processFile(ctx context.Context, inputPath string, j job) error {
	log := logger.FromContext(ctx).With().Str("file", inputPath).Logger()

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	var (
		pages []string
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(inputPath)); ext {
	case ".pdf":
		pages, err = j.extractor.ExtractFile(ctx, inputPath)
	case ".txt":
		pages, err = extractor.ReadTextFile(inputPath)
	default:
		return fmt.Errorf("expected .pdf or .txt file, got %q", ext)
	}
	if err != nil {
		return fmt.Errorf("text extraction failed: %w", err)
	}
	log.Debug().Int("pages", len(pages)).Msg("extracted text")

	bank := j.bank
	if bank == "" {
		if bank, err = parser.AutoDetect(pages); err != nil {
			return err
		}
		log.Debug().Str("bank", string(bank)).Msg("auto-detected bank")
	}

	opts := j.opts
	opts.Logger = &log
	p, err := parser.New(bank, opts)
	if err != nil {
		return err
	}

	info, err := p.Parse(pages)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}
	for _, d := range info.DebugLines {
		log.Debug().
			Int("line", d.LineNum).
			Str("result", d.Result).
			Str("section", string(d.Section)).
			Str("detail", d.Detail).
			Msg(d.Text)
	}

	w, err := writer.New(j.format, j.includeHeader)
	if err != nil {
		return err
	}
	outPath := j.output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + w.Extension()
	}
	if err := writer.WriteToFile(w, outPath, info); err != nil {
		return fmt.Errorf("%s write failed: %w", j.format, err)
	}

	printSummary(inputPath, outPath, p.BankName(), info)
	return nil
}

func printSummary(inputPath, outPath, bankName string, info *models.StatementInfo) {
	var b strings.Builder
	fmt.Fprintf(&b, "Processing: %s\n", inputPath)
	fmt.Fprintf(&b, "  Using %s parser\n", bankName)
	fmt.Fprintf(&b, "  Found %d transaction(s)\n", len(info.Transactions))
	if len(info.Transactions) == 0 {
		b.WriteString("  Warning: No transactions found. The statement layout may not match expected patterns.\n")
		b.WriteString("  Run with -debug to see how each line was classified.\n")
	}
	fmt.Fprintf(&b, "  Output: %s\n", outPath)
	if info.AccountNumber != "" {
		fmt.Fprintf(&b, "  Account number: %s\n", info.AccountNumber)
	}
	if info.StatementPeriod != "" {
		fmt.Fprintf(&b, "  Period: %s\n", info.StatementPeriod)
	}
	b.WriteString("  Done.\n")

	stdoutMu.Lock()
	defer stdoutMu.Unlock()
	fmt.Print(b.String())
}

func serve(ctx context.Context, cfg *config.Config, r *rules.Rules, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder("statement_parser")
	if err := rec.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	h := api.NewHandler(api.Deps{
		Log:       log,
		Extractor: extractor.New(log),
		Rules:     r,
		Metrics:   rec,
		Gatherer:  reg,
		Parser:    cfg.Parser,
		Version:   version,
	})
	app := api.NewApp(h, cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Str("version", version).Msg("starting server")
		errCh <- app.Listen(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
