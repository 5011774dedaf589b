package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/edss/rocket-sensors/logging"
)

const defaultSettleTime = 200 * time.Millisecond

// A Watcher re-reads a config file whenever it changes. Bursts of writes within the settle time
// produce a single read. Invalid configs are logged and skipped.
type Watcher interface {
	Config() <-chan *Config
	Close() error
}

type fsConfigWatcher struct {
	fsWatcher *fsnotify.Watcher
	configCh  chan *Config
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWatcher returns a Watcher for the config file at configPath. The containing directory is
// watched so that editors which replace the file on save are still seen.
func NewWatcher(ctx context.Context, configPath string, logger logging.Logger) (Watcher, error) {
	return newWatcher(ctx, configPath, defaultSettleTime, logger)
}

func newWatcher(ctx context.Context, configPath string, settle time.Duration, logger logging.Logger) (Watcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		utils.UncheckedError(fsWatcher.Close())
		return nil, errors.Wrapf(err, "watching %q", configPath)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	w := &fsConfigWatcher{
		fsWatcher: fsWatcher,
		configCh:  make(chan *Config),
		cancel:    cancel,
	}

	reload := make(chan struct{}, 1)
	debounced := debounce.New(settle)
	w.wg.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-cancelCtx.Done():
				return
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				debounced(func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.Errorw("config watcher error", "error", err)
			case <-reload:
				cfg, err := Read(configPath, logger)
				if err != nil {
					logger.Errorw("error reading changed config", "path", configPath, "error", err)
					continue
				}
				select {
				case <-cancelCtx.Done():
					return
				case w.configCh <- cfg:
				}
			}
		}
	}, w.wg.Done)
	return w, nil
}

// Config returns the channel changed configs are delivered on.
func (w *fsConfigWatcher) Config() <-chan *Config {
	return w.configCh
}

// Close stops watching.
func (w *fsConfigWatcher) Close() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}
