package logging

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanerInterval = time.Minute

var logDirCleanerCancel context.CancelFunc

// rotatedLog is one candidate for removal when the log directory grows too large.
type rotatedLog struct {
	path    string
	size    int64
	modTime time.Time
}

func configureLogDirCleanerLocked(logDir string, maxTotalSizeMB int, keepPath string) {
	stopLogDirCleanerLocked()

	dir := strings.TrimSpace(logDir)
	if maxTotalSizeMB <= 0 || dir == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	logDirCleanerCancel = cancel
	go runLogDirCleaner(ctx, filepath.Clean(dir), int64(maxTotalSizeMB)<<20, strings.TrimSpace(keepPath))
}

func stopLogDirCleanerLocked() {
	if logDirCleanerCancel == nil {
		return
	}
	logDirCleanerCancel()
	logDirCleanerCancel = nil
}

func runLogDirCleaner(ctx context.Context, logDir string, maxBytes int64, keepPath string) {
	ticker := time.NewTicker(logDirCleanerInterval)
	defer ticker.Stop()

	for {
		removed, err := enforceLogDirSizeLimit(logDir, maxBytes, keepPath)
		if err != nil {
			log.WithError(err).Warn("logging: failed to enforce log directory size limit")
		} else if removed > 0 {
			log.Debugf("logging: removed %d old log file(s) from %s", removed, logDir)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// enforceLogDirSizeLimit deletes the oldest *.log / *.log.gz files in logDir until the
// directory fits within maxBytes. keepPath (the active log file) is never removed.
func enforceLogDirSizeLimit(logDir string, maxBytes int64, keepPath string) (int, error) {
	dir := strings.TrimSpace(logDir)
	if maxBytes <= 0 || dir == "" {
		return 0, nil
	}
	dir = filepath.Clean(dir)

	files, total, err := listLogFiles(dir)
	if err != nil || total <= maxBytes {
		return 0, err
	}

	if keepPath != "" {
		keepPath = filepath.Clean(keepPath)
	}
	slices.SortFunc(files, func(a, b rotatedLog) int { return a.modTime.Compare(b.modTime) })

	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if f.path == keepPath {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			log.WithError(errRemove).Warnf("logging: failed to remove old log file: %s", filepath.Base(f.path))
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}

func listLogFiles(dir string) ([]rotatedLog, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var (
		files []rotatedLog
		total int64
	)
	for _, entry := range entries {
		if entry.IsDir() || !isLogFileName(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, rotatedLog{
			path:    filepath.Join(dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	return files, total, nil
}

func isLogFileName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}
