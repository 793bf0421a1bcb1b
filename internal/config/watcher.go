// Package config triggers configuration reloads on SIGHUP and on changes to
// the configuration file.
package config

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc reloads the configuration at configPath. An error is logged
// and does not stop the watcher.
type ReloadFunc func(configPath string) error

// debounce collapses the burst of events an editor save produces into one reload.
const debounce = 100 * time.Millisecond

// SetupSIGHUPHandler calls reloadFn on every SIGHUP until ctx is done.
//
//	config.SetupSIGHUPHandler(ctx, "/etc/jamfpro/config.yaml", reload)
//	// kill -HUP <pid> now reloads
func SetupSIGHUPHandler(ctx context.Context, configPath string, reloadFn ReloadFunc) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sighup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				log.Info("SIGHUP received, reloading configuration")
				runReload(configPath, reloadFn)
			}
		}
	}()

	log.Debug("SIGHUP handler configured for config reload")
}

// WatchConfigFile calls reloadFn when configPath is written or replaced.
//
// The parent directory is watched rather than the file, because editors save
// by writing a temporary file and renaming it over the original.
//
// The caller closes the returned watcher.
func WatchConfigFile(configPath string, reloadFn ReloadFunc) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configName := filepath.Base(configPath)
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		var pending <-chan time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != configName {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					pending = time.After(debounce)
				}
			case <-pending:
				pending = nil
				log.Info("Config file changed, reloading")
				runReload(configPath, reloadFn)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Error("File watcher error")
			}
		}
	}()

	log.WithField("path", configPath).Info("Watching config file")
	return watcher, nil
}

func runReload(configPath string, reloadFn ReloadFunc) {
	if err := reloadFn(configPath); err != nil {
		log.WithError(err).Error("Configuration reload failed, keeping previous configuration")
	}
}
