// Package playlist is the named-playlist registry. Playlists are keyed by
// (guild, owner, name) and persisted in sqlite, so they survive restarts and
// concurrent same-key mutations are serialized by the database.
package playlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/repository"
)

var (
	ErrNotFound     = errors.New("no playlist with that name")
	ErrPlaylistFull = errors.New("playlist is full")
	ErrEmptyName    = errors.New("playlist name must not be empty")
)

type Registry struct {
	repo    *repository.Repo
	maxSize int
}

func NewRegistry(repo *repository.Repo, maxSize int) *Registry {
	if maxSize <= 0 {
		maxSize = 50
	}
	return &Registry{repo: repo, maxSize: maxSize}
}

// Summary is one row of a playlist listing.
type Summary struct {
	Name   string
	Tracks int
}

// Create makes an empty playlist. Creating a name that already exists is a
// no-op; the return value reports whether a new playlist appeared.
func (r *Registry) Create(ctx context.Context, guild, owner, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrEmptyName
	}
	return r.repo.CreatePlaylist(ctx, guild, owner, name)
}

// Add appends a track, creating the playlist first if it does not exist yet.
func (r *Registry) Add(ctx context.Context, guild, owner, name string, t player.Track) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if _, err := r.repo.CreatePlaylist(ctx, guild, owner, name); err != nil {
		return fmt.Errorf("create playlist: %w", err)
	}
	p, err := r.repo.FindPlaylist(ctx, guild, owner, name)
	if err != nil {
		return fmt.Errorf("find playlist: %w", err)
	}
	added, err := r.repo.AppendPlaylistTrack(ctx, p.ID, &repository.PlaylistTrack{
		Title:     t.Title,
		Artist:    t.Artist,
		URL:       t.URL,
		Duration:  t.Duration,
		Thumbnail: t.Thumbnail,
		Provider:  string(t.Provider),
	}, r.limitFor(ctx, guild))
	if err != nil {
		return fmt.Errorf("append track: %w", err)
	}
	if !added {
		return ErrPlaylistFull
	}
	return nil
}

// limitFor prefers the guild's configured playlist limit over the default.
func (r *Registry) limitFor(ctx context.Context, guild string) int {
	s, err := r.repo.GetSettings(ctx, guild)
	if err != nil || s.PlaylistLimit <= 0 {
		return r.maxSize
	}
	return s.PlaylistLimit
}

// Tracks returns the playlist content in insertion order.
func (r *Registry) Tracks(ctx context.Context, guild, owner, name string) ([]player.Track, error) {
	p, err := r.repo.FindPlaylist(ctx, guild, owner, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rows, err := r.repo.ListPlaylistTracks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]player.Track, 0, len(rows))
	for _, row := range rows {
		out = append(out, player.Track{
			Title:     row.Title,
			Artist:    row.Artist,
			URL:       row.URL,
			Duration:  row.Duration,
			Thumbnail: row.Thumbnail,
			Provider:  player.Provider(row.Provider),
		})
	}
	return out, nil
}

// List returns the owner's playlists in creation order.
func (r *Registry) List(ctx context.Context, guild, owner string) ([]Summary, error) {
	rows, err := r.repo.ListPlaylists(ctx, guild, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(rows))
	for _, p := range rows {
		n, err := r.repo.CountPlaylistTracks(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Name: p.Name, Tracks: n})
	}
	return out, nil
}

// Remove deletes the track at the given 1-based position and reports
// whether anything was removed. Later tracks shift down to close the gap.
func (r *Registry) Remove(ctx context.Context, guild, owner, name string, position int) (bool, error) {
	if position < 1 {
		return false, nil
	}
	p, err := r.repo.FindPlaylist(ctx, guild, owner, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	n, err := r.repo.RemovePlaylistTrack(ctx, p.ID, position-1)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the playlist and reports whether it existed.
func (r *Registry) Delete(ctx context.Context, guild, owner, name string) (bool, error) {
	n, err := r.repo.DeletePlaylist(ctx, guild, owner, strings.TrimSpace(name))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Play enqueues the playlist's tracks in order on the session and nudges it
// to start. The session ignores the nudge unless it is idle, so a playing or
// paused session just grows its queue. When the queue fills mid-way the
// number of tracks actually enqueued is returned together with the
// queue-full error.
func (r *Registry) Play(ctx context.Context, guild, owner, name, requestedBy string, s *player.Session) (int, error) {
	tracks, err := r.Tracks(ctx, guild, owner, name)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, t := range tracks {
		t.RequestedBy = requestedBy
		if _, err := s.Enqueue(t, -1); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		s.PlayNext(ctx)
	}
	return added, nil
}
