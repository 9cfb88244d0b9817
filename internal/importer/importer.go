// Package importer watches a drop directory and feeds JSON batch files into ingest.
package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/yosgi/GeoCopilot/internal/ingest"
	"github.com/yosgi/GeoCopilot/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// doneSuffix is appended to processed files so they stop matching the
// .json filter and are never picked up twice.
const doneSuffix = ".done"

// Importer watches a directory for *.json batch files, inserts their records,
// and renames each processed file. Files that fail to parse or insert are
// left in place.
type Importer struct {
	dir      string
	service  *ingest.Service
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	pending     chan string
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger // optional; when set, logs import events
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets a logger for import events.
func WithLogger(l *zap.Logger) ImporterOption {
	return func(im *Importer) { im.logger = l }
}

// NewImporter creates an importer over the given drop directory.
func NewImporter(dir string, service *ingest.Service, opts ...ImporterOption) *Importer {
	im := &Importer{
		dir:         dir,
		service:     service,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		pending:     make(chan string, 16),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Start begins watching the drop directory, creating it if missing.
// The importer runs until ctx is cancelled or Stop is called.
func (im *Importer) Start(ctx context.Context) error {
	im.mu.Lock()
	if im.started {
		im.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(im.dir, 0755); err != nil {
		im.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		im.mu.Unlock()
		return err
	}
	if err := watcher.Add(im.dir); err != nil {
		_ = watcher.Close()
		im.mu.Unlock()
		return err
	}
	im.watcher = watcher
	im.started = true
	im.mu.Unlock()
	if im.logger != nil {
		im.logger.Info("importer watching drop directory", zap.String("dir", im.dir))
	}
	go im.run(ctx)
	return nil
}

func (im *Importer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			im.Stop()
			return
		case <-im.done:
			return
		case ev, ok := <-im.watcher.Events:
			if !ok {
				return
			}
			im.handleEvent(ev)
		case err, ok := <-im.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && im.logger != nil {
				im.logger.Debug("importer watch error", zap.Error(err))
			}
		case path := <-im.pending:
			im.process(ctx, path)
		}
	}
}

func (im *Importer) handleEvent(ev fsnotify.Event) {
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		if isBatchFile(ev.Name) {
			im.debounceImport(ev.Name)
		}
	case fsnotify.Remove, fsnotify.Rename:
		im.cancelDebounce(ev.Name)
	}
}

func isBatchFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// debounceImport delays processing until writes to the file settle.
func (im *Importer) debounceImport(path string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if t, ok := im.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(im.debounce, func() {
		im.mu.Lock()
		delete(im.debounceMap, path)
		im.mu.Unlock()
		select {
		case im.pending <- path:
		case <-im.done:
		}
	})
	im.debounceMap[path] = t
}

func (im *Importer) cancelDebounce(path string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if t, ok := im.debounceMap[path]; ok {
		t.Stop()
		delete(im.debounceMap, path)
	}
}

// ScanExisting processes batch files already present in the drop directory.
// Call after Start to pick up files dropped while the service was down.
func (im *Importer) ScanExisting(ctx context.Context) {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		if im.logger != nil {
			im.logger.Warn("importer could not scan drop directory", zap.String("dir", im.dir), zap.Error(err))
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(im.dir, entry.Name())
		if isBatchFile(path) {
			im.process(ctx, path)
		}
	}
}

func (im *Importer) process(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if im.logger != nil {
			im.logger.Warn("importer could not read file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		if im.logger != nil {
			im.logger.Warn("import file is not a JSON record array, leaving in place",
				zap.String("path", path), zap.Error(err))
		}
		return
	}

	res, err := im.service.InsertBatch(ingest.WithSource(ctx, ingest.SourceImport), records)
	if err != nil {
		if im.logger != nil {
			im.logger.Warn("import insert failed, leaving file in place",
				zap.String("path", path), zap.Error(err))
		}
		return
	}
	if err := os.Rename(path, path+doneSuffix); err != nil && im.logger != nil {
		im.logger.Warn("could not rename processed import file",
			zap.String("path", path), zap.Error(err))
	}
	if im.logger != nil {
		im.logger.Info("import file processed",
			zap.String("path", path),
			zap.String("status", res.Status),
			zap.Int("inserted", res.Inserted),
			zap.Int("total", res.TotalInDB))
	}
}

// Stop stops the importer and releases the directory watch. Safe to call
// more than once.
func (im *Importer) Stop() {
	im.mu.Lock()
	if !im.started || im.watcher == nil {
		im.mu.Unlock()
		return
	}
	for path, t := range im.debounceMap {
		t.Stop()
		delete(im.debounceMap, path)
	}
	_ = im.watcher.Close()
	im.watcher = nil
	im.started = false
	im.mu.Unlock()
	im.stopOnce.Do(func() { close(im.done) })
}
