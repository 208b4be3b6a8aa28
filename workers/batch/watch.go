package batch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xiaoyuanzhu-com/bilisub/log"
	"github.com/xiaoyuanzhu-com/bilisub/pipeline"
)

// settleDelay coalesces the write burst while a video file is still being
// copied into the watched directory.
const settleDelay = 5 * time.Second

var videoExts = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".m2ts": true,
	".ts":   true,
	".webm": true,
}

// Watcher feeds newly arrived video files into a pool as merge jobs.
type Watcher struct {
	dir      string
	template pipeline.Job // per-file jobs copy this, filling Video
	pool     *Pool

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher watches dir for video files and submits a job per file based on
// the template.
func NewWatcher(dir string, template pipeline.Job, pool *Pool) *Watcher {
	return &Watcher{
		dir:      dir,
		template: template,
		pool:     pool,
		stopChan: make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. The context cancels the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.watcher.Close()
		return err
	}

	log.Info().Str("dir", w.dir).Msg("watching for new videos")
	w.wg.Add(1)
	go w.eventLoop(ctx)
	return nil
}

// Stop ends the watch and cancels pending timers.
func (w *Watcher) Stop() {
	close(w.stopChan)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !videoExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			w.queue(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watch error")
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// queue debounces per path: each new write resets the settle timer, so the
// job fires once the copy has finished.
func (w *Watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		job := w.template
		job.Video = path
		job.OutputPath = ""
		log.Info().Str("video", path).Msg("queueing watched video")
		w.pool.Submit(job)
	})
}
