package tabsync

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// broadcastFile is the fixed name messages are exchanged through.
const broadcastFile = "tabsync-event"

// FileBusConfig wires a FileBus to a shared state directory.
type FileBusConfig struct {
	// Dir is the state directory shared between instances.
	Dir string
	// TokenFile is the credential file name whose removal signals an
	// externally ended session.
	TokenFile string
	// MarkerFile marks a locally initiated logout; when present, a token
	// removal is ours and not an external event.
	MarkerFile string
	// OnCredentialRemoved fires when the credential disappears without a
	// local marker. The caller gates it for at-most-once semantics.
	OnCredentialRemoved func()
}

// FileBus is the cross-process transport. Messages are written to a shared
// file; fsnotify delivers them to every other instance watching the same
// directory.
type FileBus struct {
	cfg     FileBusConfig
	id      string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	next      int
	subs      map[int]func(Message)
	closeOnce sync.Once
	done      chan struct{}
}

func NewFileBus(cfg FileBusConfig) (*FileBus, error) {
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	b := &FileBus{
		cfg:     cfg,
		id:      uuid.NewString(),
		watcher: watcher,
		subs:    make(map[int]func(Message)),
		done:    make(chan struct{}),
	}
	go b.watch()

	return b, nil
}

func (b *FileBus) Send(msg Message) {
	msg.Origin = b.id

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(b.cfg.Dir, broadcastFile), data, 0o600); err != nil {
		log.Printf("tabsync: broadcast write failed: %v", err)
	}
}

func (b *FileBus) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *FileBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.watcher.Close()
	})
	return err
}

func (b *FileBus) watch() {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handle(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("tabsync: watcher error: %v", err)
		case <-b.done:
			return
		}
	}
}

func (b *FileBus) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)

	switch {
	case name == broadcastFile && event.Has(fsnotify.Write|fsnotify.Create):
		b.handleBroadcast(event.Name)
	case name == b.cfg.TokenFile && event.Has(fsnotify.Remove|fsnotify.Rename):
		b.handleTokenRemoval()
	}
}

func (b *FileBus) handleBroadcast(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Origin == b.id {
		return
	}

	b.mu.Lock()
	fns := make([]func(Message), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (b *FileBus) handleTokenRemoval() {
	if b.cfg.MarkerFile != "" {
		if _, err := os.Stat(filepath.Join(b.cfg.Dir, b.cfg.MarkerFile)); err == nil {
			// Our own logout removed the credential.
			return
		}
	}
	if b.cfg.OnCredentialRemoved != nil {
		b.cfg.OnCredentialRemoved()
	}
}
