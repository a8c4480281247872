package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracertea/certidao/internal/batch"
	"github.com/tracertea/certidao/internal/browser"
	"github.com/tracertea/certidao/internal/captcha"
	"github.com/tracertea/certidao/internal/config"
	"github.com/tracertea/certidao/internal/issuer"
	"github.com/tracertea/certidao/internal/logging"
	"github.com/tracertea/certidao/internal/registry"
	"github.com/tracertea/certidao/internal/report"
	"github.com/tracertea/certidao/internal/state"
	"github.com/tracertea/certidao/internal/storage"
	"github.com/tracertea/certidao/internal/ui"
)

const artifactDirName = "certidoes"

var (
	inputFile    string
	outputDir    string
	reportFormat string
	logLevel     string
	resume       bool
	visible      bool
	upload       bool
	quiet        bool
	configFile   string
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Issue certificates for every CNPJ in the input file",
	Long: `Issue a certificate for every CNPJ listed in the input file, one at a time.

A CNPJ whose certificate cannot be issued is counted as a failure and the
batch continues with the next one. The captcha API key is read from
CAPTCHA_API_KEY (environment or .env file) or from the config file.

Examples:
  # Spreadsheet with CNPJ and company name columns
  certidao emit -i empresas.xlsx -o ./saida

  # Skip CNPJs already issued by a previous run in the same directory
  certidao emit -i cnpjs.txt -o ./saida --resume

  # JSON report and upload of certificates to S3
  certidao emit -i empresas.csv -o ./saida --format json --upload`,
	RunE: runEmit,
}

func runEmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyEmitFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("could not create output directory %s: %w", cfg.OutputDir, err)
	}

	var console io.Writer = os.Stderr
	if quiet {
		console = io.Discard
	}
	logger, logFile := logging.New(cfg.OutputDir, cfg.LogFile, cfg.LogLevel, console)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateMgr, err := state.NewManager(cfg.OutputDir, logger)
	if err != nil {
		return err
	}
	defer stateMgr.Close()

	ids, reg, err := registry.Load(cfg.Input)
	if err != nil {
		return err
	}
	submitted := len(ids)
	skipped := 0
	if cfg.Resume {
		ids, skipped = stateMgr.Filter(ids)
	}

	logger.Info("certidao starting.",
		"input", cfg.Input,
		"output_dir", cfg.OutputDir,
		"cnpjs", submitted,
		"skipped", skipped,
		"report_format", cfg.ReportFormat,
		"api_key", cfg.MaskedAPIKey(),
	)

	display := ui.NewDisplay(cmd.OutOrStdout(), reg)
	display.Header(len(ids), skipped)

	var session batch.Session
	if len(ids) > 0 {
		chrome, err := browser.NewChromeSession(ctx, browser.Options{
			Headless:      !cfg.Browser.Visible,
			ActionTimeout: cfg.Browser.ActionTimeout,
			UserAgent:     cfg.Browser.UserAgent,
			ExecPath:      cfg.Browser.ExecPath,
		}, logger)
		if err != nil {
			return err
		}
		defer chrome.Close()
		session = chrome
	}

	solver := captcha.NewClient(cfg.CaptchaClientConfig(), nil, logger)
	certIssuer := issuer.New(cfg.IssuerConfig(filepath.Join(cfg.OutputDir, artifactDirName)), solver, logger)

	summary, reportPath, runErr := execute(ctx, cfg, runDeps{
		session:   session,
		issuer:    certIssuer,
		ids:       ids,
		registry:  reg,
		observers: batch.Observers{display, stateMgr},
		logger:    logger,
	})
	if summary != nil {
		display.Summary(summary, reportPath)
	}
	if runErr != nil {
		return runErr
	}

	if cfg.Upload.Enabled {
		if err := uploadArtifacts(ctx, cfg, logger); err != nil {
			return err
		}
	}
	return nil
}

// runDeps carries what a batch run needs beyond the configuration.
type runDeps struct {
	session   batch.Session
	issuer    batch.Issuer
	ids       []batch.Identifier
	registry  batch.Registry
	observers batch.Observers
	logger    *slog.Logger
}

// execute runs the batch and writes the report. The report is written even
// when the run is cancelled; the cancellation error is returned afterwards.
func execute(ctx context.Context, cfg *config.Config, deps runDeps) (*report.Summary, string, error) {
	processor := batch.NewProcessor(deps.issuer,
		batch.WithLogger(deps.logger),
		batch.WithObserver(deps.observers),
	)

	start := time.Now()
	result, runErr := processor.Process(ctx, deps.session, deps.ids, batch.Credential(cfg.APIKey), deps.registry)
	summary := report.NewSummary(result, deps.registry, len(deps.ids), time.Since(start))

	reportPath := report.Path(cfg.OutputDir, cfg.ReportFormat)
	writer, err := report.NewWriterFactory().Create(reportPath, cfg.ReportFormat)
	if err != nil {
		return summary, "", fmt.Errorf("failed to create report writer: %w", err)
	}
	if err := writer.Write(summary); err != nil {
		return summary, "", fmt.Errorf("failed to write report: %w", err)
	}
	deps.logger.Info("Report written.", "path", reportPath, "success", summary.SuccessCount, "failure", summary.FailureCount)

	if runErr != nil {
		return summary, reportPath, fmt.Errorf("batch interrupted after %d of %d CNPJs: %w", result.Processed(), len(deps.ids), runErr)
	}
	return summary, reportPath, nil
}

func uploadArtifacts(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	uploader, err := storage.NewS3Uploader(ctx, cfg.Upload.Region, cfg.Upload.Bucket, cfg.Upload.Concurrency, logger)
	if err != nil {
		return err
	}
	prefix := cfg.Upload.Prefix + "/" + time.Now().Format("2006-01-02")

	if _, err := uploader.UploadDir(ctx, filepath.Join(cfg.OutputDir, artifactDirName), prefix+"/"+artifactDirName, ".pdf"); err != nil {
		return fmt.Errorf("failed to upload certificates: %w", err)
	}
	reportPath := report.Path(cfg.OutputDir, cfg.ReportFormat)
	if err := uploader.UploadFile(ctx, reportPath, prefix+"/"+filepath.Base(reportPath)); err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}
	return nil
}

// applyEmitFlags overrides configuration with flags that were set
// explicitly (flags take precedence).
func applyEmitFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input = inputFile
	}
	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("format") {
		cfg.ReportFormat = reportFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("resume") {
		cfg.Resume = resume
	}
	if flags.Changed("visible") {
		cfg.Browser.Visible = visible
	}
	if flags.Changed("upload") {
		cfg.Upload.Enabled = upload
	}
}

func init() {
	emitCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file with CNPJs (.xlsx, .csv or .txt)")
	emitCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory for certificates, report, journal and log")
	emitCmd.Flags().StringVarP(&reportFormat, "format", "f", "xlsx", "Report format (xlsx, json, csv)")

	emitCmd.Flags().BoolVar(&resume, "resume", false, "Skip CNPJs already issued in the output directory")
	emitCmd.Flags().BoolVar(&visible, "visible", false, "Show the browser window instead of running headless")
	emitCmd.Flags().BoolVar(&upload, "upload", false, "Upload certificates and report to S3 after the batch")

	emitCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	emitCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print log lines on the console")

	emitCmd.Flags().StringVar(&configFile, "config", "", "Configuration file path (yaml, json or toml)")
}
