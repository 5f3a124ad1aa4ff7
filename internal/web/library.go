package web

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
	"github.com/tcolgate/mp3"
)

// Song is the library's view of one downloaded file.
type Song struct {
	Name     string  `json:"name"` // file name, unique within the library
	Title    string  `json:"title"`
	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds
	Size     int64   `json:"size"`
	HasCover bool    `json:"hasCover"`
}

// Library keeps in-memory metadata for the music directory and rescans on
// filesystem changes.
type Library struct {
	root    string
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	songs []Song

	refreshMu    sync.Mutex
	refreshTimer *time.Timer
	refreshDelay time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewLibrary(root string, debounce time.Duration) (*Library, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	l := &Library{
		root:         root,
		watcher:      watcher,
		refreshDelay: debounce,
		done:         make(chan struct{}),
	}

	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, err
	}
	l.refresh()

	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *Library) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.refreshMu.Lock()
		if l.refreshTimer != nil {
			l.refreshTimer.Stop()
			l.refreshTimer = nil
		}
		l.refreshMu.Unlock()
		err = l.watcher.Close()
		l.wg.Wait()
	})
	return err
}

// Songs returns a snapshot sorted by name.
func (l *Library) Songs() []Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Song, len(l.songs))
	copy(out, l.songs)
	return out
}

// FilePath maps a library song name to an absolute path, rejecting anything
// that escapes the music directory.
func (l *Library) FilePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.New("invalid song name")
	}
	path := filepath.Join(l.root, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Cover returns the embedded cover art of a song, when there is one.
func (l *Library) Cover(name string) (data []byte, mime string, err error) {
	path, err := l.FilePath(name)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, "", err
	}
	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, "", errors.New("no embedded cover")
	}
	mime = pic.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return pic.Data, mime, nil
}

func (l *Library) run() {
	defer l.wg.Done()
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				l.scheduleRefresh()
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("library watcher error", "err", err)
		case <-l.done:
			return
		}
	}
}

func (l *Library) scheduleRefresh() {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()
	if l.refreshTimer != nil {
		l.refreshTimer.Stop()
	}
	l.refreshTimer = time.AfterFunc(l.refreshDelay, l.refresh)
}

func (l *Library) refresh() {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		slog.Warn("library scan failed", "dir", l.root, "err", err)
		return
	}
	songs := make([]Song, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp3") {
			continue
		}
		s, err := buildSong(filepath.Join(l.root, e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable file", "name", e.Name(), "err", err)
			continue
		}
		songs = append(songs, s)
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].Name < songs[j].Name })

	l.mu.Lock()
	l.songs = songs
	l.mu.Unlock()
}

func buildSong(path string) (Song, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Song{}, err
	}
	s := Song{
		Name:  filepath.Base(path),
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Size:  info.Size(),
	}

	if f, err := os.Open(path); err == nil {
		if meta, err := tag.ReadFrom(f); err == nil {
			if t := strings.TrimSpace(meta.Title()); t != "" {
				s.Title = t
			}
			s.Artist = strings.TrimSpace(meta.Artist())
			s.Album = strings.TrimSpace(meta.Album())
			s.HasCover = meta.Picture() != nil
		}
		f.Close()
	}

	if dur, err := mp3Duration(path); err == nil && dur > 0 {
		s.Duration = dur
	}
	return s, nil
}

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return total, nil
}
