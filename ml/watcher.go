package ml

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ModelHandle holds the predictor currently serving requests. Readers never block; a reload
// swaps in a fully constructed predictor.
type ModelHandle struct {
	current atomic.Pointer[Predictor]
}

func NewModelHandle(p *Predictor) *ModelHandle {
	h := &ModelHandle{}
	h.current.Store(p)
	return h
}

func (h *ModelHandle) Predictor() *Predictor {
	return h.current.Load()
}

func (h *ModelHandle) Swap(p *Predictor) {
	h.current.Store(p)
}

// ReloadFunc is told about every reload attempt. err is nil on success.
type ReloadFunc func(artifact *Artifact, err error)

// ModelWatcher reloads the model file into a ModelHandle whenever the trainer rewrites it.
// A failed reload keeps the previous predictor.
type ModelWatcher struct {
	path      string
	schema    Schema
	cacheSize int
	handle    *ModelHandle
	logger    *zap.Logger
	onReload  ReloadFunc
	watcher   *fsnotify.Watcher
}

func NewModelWatcher(path string, schema Schema, cacheSize int, handle *ModelHandle, logger *zap.Logger, onReload ReloadFunc) (*ModelWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create model watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	// Watch the directory: the trainer replaces the file by rename, which drops a file-level watch.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &ModelWatcher{
		path:      abs,
		schema:    schema,
		cacheSize: cacheSize,
		handle:    handle,
		logger:    logger,
		onReload:  onReload,
		watcher:   w,
	}, nil
}

// Run processes file events until ctx is cancelled.
func (mw *ModelWatcher) Run(ctx context.Context) {
	defer mw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != mw.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				mw.Reload()
			}
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Warn("model watcher error", zap.Error(err))
		}
	}
}

// Reload loads the model file and swaps it in when it is valid for the configured schema.
func (mw *ModelWatcher) Reload() {
	predictor, err := LoadPredictor(mw.path, mw.schema, mw.cacheSize)
	if err != nil {
		mw.logger.Error("model reload failed, keeping previous model", zap.String("path", mw.path), zap.Error(err))
		if mw.onReload != nil {
			mw.onReload(nil, err)
		}
		return
	}
	mw.handle.Swap(predictor)
	mw.logger.Info("model reloaded",
		zap.String("path", mw.path),
		zap.Time("trained_at", predictor.Artifact().TrainedAt),
		zap.Float64("accuracy", predictor.Artifact().Report.Accuracy),
	)
	if mw.onReload != nil {
		mw.onReload(predictor.Artifact(), nil)
	}
}
