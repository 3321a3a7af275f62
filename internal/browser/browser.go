// Package browser opens the auditor UI in the default web browser.
package browser

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

const readyPollInterval = 100 * time.Millisecond

// opener is swapped in tests.
var opener = open.Run

// OpenURL opens url in the default browser. It tries open-golang first and
// falls back to platform commands.
func OpenURL(url string) error {
	err := opener(url)
	if err == nil {
		log.Debugf("opened %s in browser", url)
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(url)
}

// OpenWhenReady waits until addr accepts TCP connections, then opens url.
// It gives up when ctx is done.
func OpenWhenReady(ctx context.Context, addr, url string) error {
	dialer := net.Dialer{Timeout: readyPollInterval}
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			return OpenURL(url)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("browser: %s not reachable: %w", addr, ctx.Err())
		case <-ticker.C:
		}
	}
}

func openURLPlatformSpecific(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		for _, browser := range []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"} {
			if _, err := exec.LookPath(browser); err == nil {
				cmd = exec.Command(browser, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser found on Linux system")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}
