package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"resumematch/internal/errors"
)

const defaultDebounceDelay = time.Second

// FileWatcher calls a reload callback when any of a set of files changes on
// disk. Bursts of events are collapsed into one call after a debounce delay.
type FileWatcher struct {
	mu sync.RWMutex

	name  string // what the files are, for logs
	files []string

	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	reloadCallback func()
	logger         *errors.Logger

	running bool
}

// NewFileWatcher creates a watcher for files. Empty paths are ignored.
func NewFileWatcher(name string, files []string, debounceDelay time.Duration, reloadCallback func(), logger *errors.Logger) (*FileWatcher, error) {
	if reloadCallback == nil {
		return nil, fmt.Errorf("%s watcher needs a reload callback", name)
	}
	if debounceDelay <= 0 {
		debounceDelay = defaultDebounceDelay
	}

	var watched []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		watched = append(watched, f)
	}
	if len(watched) == 0 {
		return nil, fmt.Errorf("%s watcher has no files to watch", name)
	}

	return &FileWatcher{
		name:           name,
		files:          watched,
		lastModTime:    make(map[string]time.Time),
		debounceDelay:  debounceDelay,
		stopChan:       make(chan struct{}),
		reloadChan:     make(chan struct{}, 1),
		reloadCallback: reloadCallback,
		logger:         logger,
	}, nil
}

// Start begins watching the files for changes
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("%s watcher is already running", fw.name)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.fsWatcher = watcher

	if err := fw.updateModTimes(); err != nil {
		fw.cleanupWatcher()
		return fmt.Errorf("failed to get initial file modification times: %w", err)
	}

	for _, file := range fw.files {
		if err := fw.addFileToWatcher(file); err != nil && fw.logger != nil {
			fw.logger.Warn("Failed to watch file", "watcher", fw.name, "file", file, "error", err)
		}
	}

	fw.running = true
	go fw.watchLoop(fw.fsWatcher, fw.stopChan)

	if fw.logger != nil {
		fw.logger.Info("File watcher started",
			"watcher", fw.name,
			"files", fw.files,
			"debounce_delay", fw.debounceDelay)
	}
	return nil
}

func (fw *FileWatcher) cleanupWatcher() {
	if fw.fsWatcher != nil {
		if closeErr := fw.fsWatcher.Close(); closeErr != nil && fw.logger != nil {
			fw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		fw.fsWatcher = nil
	}
}

// Stop stops the watcher. Stopping a stopped watcher is a no-op.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil
	}

	close(fw.stopChan)

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}

	fw.running = false

	if fw.fsWatcher != nil {
		if err := fw.fsWatcher.Close(); err != nil {
			return fmt.Errorf("failed to close %s watcher: %w", fw.name, err)
		}
	}

	if fw.logger != nil {
		fw.logger.Info("File watcher stopped", "watcher", fw.name)
	}
	return nil
}

// addFileToWatcher watches file and its directory. Editors and secret
// mounts replace files by rename, which only the directory sees.
func (fw *FileWatcher) addFileToWatcher(file string) error {
	dir := filepath.Dir(file)
	if err := fw.fsWatcher.Add(file); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to watch file %s: %w", file, err)
		}
		if fw.logger != nil {
			fw.logger.Info("Watching directory for missing file", "file", file, "directory", dir)
		}
	}

	if err := fw.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

// updateModTimes records the current modification time of every file.
func (fw *FileWatcher) updateModTimes() error {
	for _, file := range fw.files {
		if stat, err := os.Stat(file); err == nil {
			fw.lastModTime[file] = stat.ModTime()
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat file %s: %w", file, err)
		}
	}
	return nil
}

// hasFileChanged checks if a file has been modified since last check
func (fw *FileWatcher) hasFileChanged(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			if _, exists := fw.lastModTime[file]; exists {
				delete(fw.lastModTime, file)
				return true
			}
		}
		return false
	}

	lastMod, exists := fw.lastModTime[file]
	if !exists || !stat.ModTime().Equal(lastMod) {
		fw.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

func (fw *FileWatcher) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if fw.shouldProcessEvent(event) {
				fw.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if fw.logger != nil {
				fw.logger.LogError(err, "File watcher error", "watcher", fw.name)
			}

		case <-fw.reloadChan:
			if fw.hasAnyFileChanged() {
				if fw.logger != nil {
					fw.logger.Info("Watched files changed, triggering reload", "watcher", fw.name)
				}
				fw.reloadCallback()
			}

		case <-stop:
			return
		}
	}
}

// shouldProcessEvent reports whether event touches one of the watched files.
func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return slices.ContainsFunc(fw.files, func(file string) bool {
		return name == file || filepath.Base(name) == filepath.Base(file)
	})
}

// hasAnyFileChanged updates every stored modification time and reports
// whether any of them moved.
func (fw *FileWatcher) hasAnyFileChanged() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	changed := false
	for _, file := range fw.files {
		if fw.hasFileChanged(file) {
			changed = true
		}
	}
	return changed
}

// scheduleReload schedules a debounced reload
func (fw *FileWatcher) scheduleReload() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}

	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, func() {
		select {
		case fw.reloadChan <- struct{}{}:
		default:
			// already pending
		}
	})
}

// IsRunning returns whether the watcher is currently running
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.running
}

// GetWatchedFiles returns the list of files being watched
func (fw *FileWatcher) GetWatchedFiles() []string {
	return slices.Clone(fw.files)
}
