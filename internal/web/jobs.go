package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/resolver"
)

var ErrJobNotFound = errors.New("job not found")

// Downloader is the slice of the resolver the job runner needs.
type Downloader interface {
	Download(ctx context.Context, query string, quality resolver.Quality, dir string, progress func(resolver.DownloadProgress)) (string, player.Track, error)
}

// Event is one SSE progress message.
type Event struct {
	Status  resolver.DownloadStatus `json:"status"`
	Percent float64                 `json:"percent,omitempty"`
	Song    string                  `json:"song,omitempty"`
	Artist  string                  `json:"artist,omitempty"`
	Album   string                  `json:"album,omitempty"`
	Message string                  `json:"message,omitempty"`
}

func (e Event) terminal() bool {
	return e.Status == resolver.StatusCompleted || e.Status == resolver.StatusError
}

// Job tracks one download from submission to completion.
type Job struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	StartTime time.Time `json:"startTime"`

	mu   sync.Mutex
	last Event
	subs map[chan Event]struct{}
	done bool
}

func (j *Job) publish(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return
	}
	j.last = e
	for ch := range j.subs {
		select {
		case ch <- e:
		default:
			// slow subscriber keeps only the most recent event
		}
	}
	if e.terminal() {
		j.done = true
		for ch := range j.subs {
			close(ch)
		}
		j.subs = nil
	}
}

// Subscribe returns a channel of progress events and a cancel func. The
// latest event is replayed immediately; the channel closes after a terminal
// event.
func (j *Job) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	j.mu.Lock()
	if j.last.Status != "" {
		ch <- j.last
	}
	if j.done {
		close(ch)
		j.mu.Unlock()
		return ch, func() {}
	}
	if j.subs == nil {
		j.subs = make(map[chan Event]struct{})
	}
	j.subs[ch] = struct{}{}
	j.mu.Unlock()

	cancel := func() {
		j.mu.Lock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
		j.mu.Unlock()
	}
	return ch, cancel
}

// Status returns the latest event snapshot.
func (j *Job) Status() Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// JobManager owns download jobs for the web UI.
type JobManager struct {
	downloader Downloader
	dir        string

	mu   sync.Mutex
	jobs map[string]*Job
	seq  int64
}

func NewJobManager(d Downloader, dir string) *JobManager {
	return &JobManager{
		downloader: d,
		dir:        dir,
		jobs:       make(map[string]*Job),
	}
}

// Submit starts a download in the background and returns the job handle.
func (m *JobManager) Submit(query string, quality resolver.Quality) *Job {
	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("%d-%d", time.Now().UnixNano(), m.seq)
	j := &Job{ID: id, Query: query, StartTime: time.Now()}
	m.jobs[id] = j
	m.mu.Unlock()

	go m.run(j, query, quality)
	return j
}

func (m *JobManager) Get(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

func (m *JobManager) run(j *Job, query string, quality resolver.Quality) {
	j.publish(Event{Status: resolver.StatusDownloading, Percent: 0})

	path, track, err := m.downloader.Download(context.Background(), query, quality, m.dir, func(p resolver.DownloadProgress) {
		j.publish(Event{Status: p.Status, Percent: p.Percent})
	})
	if err != nil {
		slog.Error("download job failed", "jobID", j.ID, "query", query, "err", err)
		j.publish(Event{Status: resolver.StatusError, Message: err.Error()})
		return
	}

	slog.Info("download job completed", "jobID", j.ID, "path", path)
	j.publish(Event{
		Status:  resolver.StatusCompleted,
		Percent: 100,
		Song:    track.Title,
		Artist:  track.Artist,
		Album:   track.Album,
	})
}
