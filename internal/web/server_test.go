package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/resolver"
)

type fakeDownloader struct {
	events  []resolver.DownloadProgress
	track   player.Track
	err     error
	release chan struct{} // when non-nil, Download waits before finishing
}

func (f *fakeDownloader) Download(ctx context.Context, query string, quality resolver.Quality, dir string, progress func(resolver.DownloadProgress)) (string, player.Track, error) {
	if f.release != nil {
		<-f.release
	}
	for _, e := range f.events {
		progress(e)
	}
	if f.err != nil {
		return "", player.Track{}, f.err
	}
	return filepath.Join(dir, "song.mp3"), f.track, nil
}

func newTestServer(t *testing.T, d Downloader) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	lib, err := NewLibrary(dir, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	srv := NewServer(NewJobManager(d, dir), lib)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func submitJob(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/downloads", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["id"])
	return out["id"]
}

func TestSubmitDownloadValidation(t *testing.T) {
	ts := newTestServer(t, &fakeDownloader{})

	resp, err := http.Post(ts.URL+"/api/downloads", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/downloads", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobStatusLifecycle(t *testing.T) {
	d := &fakeDownloader{
		track: player.Track{Title: "Song", Artist: "Artist", Album: "Album"},
	}
	ts := newTestServer(t, d)
	id := submitJob(t, ts, `{"query":"some song","quality":"high"}`)

	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/downloads/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var e Event
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return false
		}
		return e.Status == resolver.StatusCompleted && e.Song == "Song"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeDownloader{})
	resp, err := http.Get(ts.URL + "/api/downloads/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/downloads/nope/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadEventsStream(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDownloader{
		release: release,
		events: []resolver.DownloadProgress{
			{Status: resolver.StatusDownloading, Percent: 42},
			{Status: resolver.StatusConverting, Percent: 100},
		},
		track: player.Track{Title: "Song", Artist: "Artist"},
	}
	ts := newTestServer(t, d)
	id := submitJob(t, ts, `{"query":"some song"}`)

	resp, err := http.Get(ts.URL + "/api/downloads/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	close(release)

	var statuses []resolver.DownloadStatus
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		statuses = append(statuses, e.Status)
		if e.terminal() {
			assert.Equal(t, "Song", e.Song)
			break
		}
	}
	require.NotEmpty(t, statuses)
	assert.Equal(t, resolver.StatusCompleted, statuses[len(statuses)-1])
	assert.Contains(t, statuses, resolver.StatusDownloading)
}

func TestDownloadEventsError(t *testing.T) {
	d := &fakeDownloader{err: errors.New("no formats found")}
	ts := newTestServer(t, d)
	id := submitJob(t, ts, `{"query":"bad"}`)

	resp, err := http.Get(ts.URL + "/api/downloads/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var last Event
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last))
		if last.terminal() {
			break
		}
	}
	assert.Equal(t, resolver.StatusError, last.Status)
	assert.Contains(t, last.Message, "no formats")
}

func TestSongRoutes(t *testing.T) {
	dir := t.TempDir()
	content := []byte("not really an mp3 but served as one")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tune.mp3"), content, 0o644))

	lib, err := NewLibrary(dir, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	srv := NewServer(NewJobManager(&fakeDownloader{}, dir), lib)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/songs")
	require.NoError(t, err)
	var out struct {
		Songs []Song `json:"songs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Len(t, out.Songs, 1)
	assert.Equal(t, "tune.mp3", out.Songs[0].Name)
	assert.Equal(t, "tune", out.Songs[0].Title)

	resp, err = http.Get(ts.URL + "/songs/tune.mp3")
	require.NoError(t, err)
	body, _ := os.ReadFile(filepath.Join(dir, "tune.mp3"))
	got := new(bytes.Buffer)
	_, _ = got.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, body, got.Bytes())

	// no embedded art in a garbage file
	resp, err = http.Get(ts.URL + "/cover/tune.mp3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/songs/missing.mp3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLibraryRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	lib, err := NewLibrary(dir, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	_, err = lib.FilePath("../etc/passwd")
	assert.Error(t, err)
	_, err = lib.FilePath(".hidden.mp3")
	assert.Error(t, err)
	_, err = lib.FilePath("")
	assert.Error(t, err)
}

func TestJobSubscribeReplaysTerminalState(t *testing.T) {
	j := &Job{ID: "1"}
	j.publish(Event{Status: resolver.StatusDownloading, Percent: 10})
	j.publish(Event{Status: resolver.StatusCompleted, Percent: 100, Song: "Song"})

	events, cancel := j.Subscribe()
	defer cancel()

	e, ok := <-events
	require.True(t, ok)
	assert.Equal(t, resolver.StatusCompleted, e.Status)

	_, ok = <-events
	assert.False(t, ok, "channel closes after the terminal replay")

	// publishing after a terminal event is a no-op
	j.publish(Event{Status: resolver.StatusDownloading})
	assert.Equal(t, resolver.StatusCompleted, j.Status().Status)
}
