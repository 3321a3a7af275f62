// config_reload.go implements debounced configuration hot reload.
// It detects material changes and hands the new config to the reload callback.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/util"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.configReloadMu.Unlock()
}

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (w *Watcher) reloadConfigIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])

	w.configMu.RLock()
	currentHash := w.lastConfigHash
	w.configMu.RUnlock()
	if currentHash != "" && currentHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	if w.reloadConfig() {
		w.configMu.Lock()
		w.lastConfigHash = newHash
		w.configMu.Unlock()
	}
}

func (w *Watcher) reloadConfig() bool {
	newConfig, errLoadConfig := config.LoadConfig(w.configPath)
	if errLoadConfig != nil {
		log.Errorf("failed to reload config: %v", errLoadConfig)
		return false
	}

	w.configMu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.configMu.Unlock()

	util.SetLogLevel(newConfig)
	if oldConfig != nil {
		details := changeDetails(oldConfig, newConfig)
		if len(details) > 0 {
			log.Debugf("config changes detected:")
			for _, d := range details {
				log.Debugf("  %s", d)
			}
		} else {
			log.Debugf("no material config field changes detected")
		}
	}

	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	return true
}

// changeDetails lists the config sections that differ. Secrets are never printed.
func changeDetails(oldCfg, newCfg *config.Config) []string {
	var out []string
	if oldCfg.Debug != newCfg.Debug {
		out = append(out, fmt.Sprintf("debug: %t -> %t", oldCfg.Debug, newCfg.Debug))
	}
	if oldCfg.Host != newCfg.Host || oldCfg.Port != newCfg.Port {
		out = append(out, fmt.Sprintf("listen address: %s:%d -> %s:%d (restart required)", oldCfg.Host, oldCfg.Port, newCfg.Host, newCfg.Port))
	}
	if oldCfg.ProxyURL != newCfg.ProxyURL {
		out = append(out, "proxy-url changed")
	}
	keyChange := func(name, oldKey, newKey string) {
		if oldKey != newKey {
			out = append(out, fmt.Sprintf("%s api key: %s -> %s", name, util.HideAPIKey(oldKey), util.HideAPIKey(newKey)))
		}
	}
	keyChange("gemini", oldCfg.Gemini.APIKey, newCfg.Gemini.APIKey)
	keyChange("claude", oldCfg.Claude.APIKey, newCfg.Claude.APIKey)
	keyChange("openai", oldCfg.OpenAI.APIKey, newCfg.OpenAI.APIKey)
	keyChange("ahrefs", oldCfg.Ahrefs.APIKey, newCfg.Ahrefs.APIKey)

	sections := []struct {
		name          string
		before, after any
	}{
		{"gemini models", oldCfg.Gemini.Models, newCfg.Gemini.Models},
		{"claude models", oldCfg.Claude.Models, newCfg.Claude.Models},
		{"openai models", oldCfg.OpenAI.Models, newCfg.OpenAI.Models},
		{"ahrefs limits", limitsOf(oldCfg.Ahrefs), limitsOf(newCfg.Ahrefs)},
		{"scraper", oldCfg.Scraper, newCfg.Scraper},
		{"templates", oldCfg.Templates, newCfg.Templates},
		{"audit", oldCfg.Audit, newCfg.Audit},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.before, s.after) {
			out = append(out, s.name+" changed")
		}
	}
	return out
}

func limitsOf(a config.AhrefsConfig) config.AhrefsConfig {
	a.APIKey = ""
	return a
}
