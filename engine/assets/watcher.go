package assets

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pangaea-engine/pangaea/engine/core"
)

// ShaderWatcher invalidates store entries when compiled shader files change
// on disk and reports the changed names so callers can rebuild pipelines.
type ShaderWatcher struct {
	store   *ShaderStore
	watcher *fsnotify.Watcher
	changed chan string
	done    chan struct{}
}

// NewShaderWatcher starts watching the store's directory. Changed shader
// names arrive on Changed; the channel drops notifications when nobody is
// listening rather than stalling the watch loop.
func NewShaderWatcher(store *ShaderStore) (*ShaderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(store.Dir()); err != nil {
		watcher.Close()
		return nil, err
	}

	sw := &ShaderWatcher{
		store:   store,
		watcher: watcher,
		changed: make(chan string, 16),
		done:    make(chan struct{}),
	}
	go sw.run()
	core.LogInfo("Watching %s for shader changes.", store.Dir())
	return sw, nil
}

// Changed delivers the names of shaders rewritten on disk.
func (sw *ShaderWatcher) Changed() <-chan string {
	return sw.changed
}

func (sw *ShaderWatcher) run() {
	defer close(sw.changed)
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, spirvExtension) {
				continue
			}
			sw.store.Invalidate(name)
			core.LogInfo("Shader %q changed on disk.", name)
			select {
			case sw.changed <- name:
			default:
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher error: %v", err)
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
