// Package main is the entry point for Claudio. By default it serves the audit
// UI and API; with -audit it runs a single audit from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/buildinfo"
	"github.com/claudio-seo/claudio/internal/cmd"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/prompt"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/claudio-seo/claudio/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var (
		configPath    string
		auditURL      string
		auditType     string
		model         string
		confirmAhrefs bool
		outDir        string
		openResult    bool
		showVersion   bool
	)

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&auditURL, "audit", "", "Run a single audit of this URL and exit")
	flag.StringVar(&auditType, "type", string(prompt.Basic), "Audit type: basic or full")
	flag.StringVar(&model, "model", "", "Model id (defaults to the first available)")
	flag.BoolVar(&confirmAhrefs, "confirm-ahrefs", false, "Confirm Ahrefs API unit usage for full audits")
	flag.StringVar(&outDir, "out", "", "Directory for generated documents (with -audit)")
	flag.BoolVar(&openResult, "open", false, "Open the UI in a browser, or the report with -audit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	util.SetLogLevel(cfg)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.FromEnv(ctx, os.LookupEnv, cfg.Audit.HistoryLimit)
	if err != nil {
		log.Errorf("failed to initialize audit store: %v", err)
		os.Exit(1)
	}
	defer func() {
		if errClose := closeStore(); errClose != nil {
			log.Warnf("failed to close audit store: %v", errClose)
		}
	}()

	if auditURL != "" {
		_, err = cmd.DoAudit(ctx, cfg, st, cmd.AuditOptions{
			Request: audit.Request{
				URL:           auditURL,
				Type:          auditType,
				Model:         model,
				ConfirmAhrefs: confirmAhrefs,
			},
			OutDir:     outDir,
			OpenReport: openResult,
		})
	} else {
		log.Info(buildinfo.String())
		err = cmd.StartServer(ctx, cfg, st, cmd.ServeOptions{
			ConfigPath:  configPath,
			OpenBrowser: openResult,
		})
	}
	if err != nil {
		log.Errorf("%v", err)
		stop()
		_ = closeStore()
		os.Exit(1)
	}
}
