package localstore

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes a file-backed store directory and reports which rooms
// had their document snapshot rewritten. This is how one agent notices
// writes made by another process on the same device; it is the moral
// equivalent of a browser storage event.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
	done    chan struct{}
	log     zerolog.Logger
}

// NewWatcher starts watching the store root. Callers drain Changes until
// they Close the watcher.
func NewWatcher(store *File, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(store.Root()); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		changes: make(chan string, 16),
		done:    make(chan struct{}),
		log:     log.With().Str("component", "store-watcher").Logger(),
	}
	go w.run()
	return w, nil
}

// Changes delivers room ids whose snapshot file changed on disk.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) run() {
	defer close(w.changes)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			roomID, ok := roomFromSnapshotPath(event.Name)
			if !ok {
				continue
			}
			select {
			case w.changes <- roomID:
			default:
				// Session throttles merges anyway, dropping is fine.
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("store watch error")
		}
	}
}

// Close stops the watcher and closes the Changes channel.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func roomFromSnapshotPath(path string) (string, bool) {
	name := path
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if !strings.HasPrefix(name, "room-") || !strings.HasSuffix(name, documentsSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "room-"), documentsSuffix), true
}
