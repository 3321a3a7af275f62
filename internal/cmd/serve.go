// Package cmd holds the entry points selected by command-line flags: the HTTP
// server and the one-shot command-line audit.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/claudio-seo/claudio/internal/api"
	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/browser"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/claudio-seo/claudio/internal/watcher"
	log "github.com/sirupsen/logrus"
)

const browserWait = 15 * time.Second

// ServeOptions controls StartServer.
type ServeOptions struct {
	// ConfigPath is watched for hot reload when it names an existing file.
	ConfigPath string
	// OpenBrowser opens the UI once the server accepts connections.
	OpenBrowser bool
}

// StartServer serves the UI and API until ctx is cancelled.
func StartServer(ctx context.Context, cfg *config.Config, st store.Store, opts ServeOptions) error {
	svc, err := audit.NewService(cfg, st)
	if err != nil {
		return err
	}
	defer svc.Close()

	if info, errStat := os.Stat(opts.ConfigPath); errStat == nil && !info.IsDir() {
		w, errWatch := watcher.NewWatcher(opts.ConfigPath, func(newCfg *config.Config) {
			if errLog := logging.ConfigureLogOutput(newCfg); errLog != nil {
				log.Errorf("failed to reconfigure log output: %v", errLog)
			}
			if errUpdate := svc.UpdateConfig(newCfg); errUpdate != nil {
				log.Errorf("failed to apply reloaded config: %v", errUpdate)
			}
		})
		if errWatch != nil {
			log.Warnf("config hot reload disabled: %v", errWatch)
		} else {
			w.SetConfig(cfg)
			if errStart := w.Start(ctx); errStart != nil {
				log.Warnf("config hot reload disabled: %v", errStart)
			}
			defer func() { _ = w.Stop() }()
		}
	}

	srv := api.NewServer(cfg, svc)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if opts.OpenBrowser {
		go func() {
			openCtx, cancel := context.WithTimeout(ctx, browserWait)
			defer cancel()
			addr := dialAddr(cfg)
			if errOpen := browser.OpenWhenReady(openCtx, addr, "http://"+addr+"/"); errOpen != nil {
				log.Warnf("failed to open browser: %v", errOpen)
			}
		}()
	}

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	if err = srv.Stop(context.Background()); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return <-errCh
}

// dialAddr is the address a local browser reaches the server on.
func dialAddr(cfg *config.Config) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}
