package playlist

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/repository"
)

func newTestRegistry(t *testing.T) (*Registry, *repository.Repo) {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewRepo(db)
	return NewRegistry(repo, 50), repo
}

type stubResolver struct{}

func (stubResolver) StreamURL(_ context.Context, t *player.Track) (string, error) {
	return "stream://" + t.URL, nil
}

type stubSink struct {
	mu    sync.Mutex
	plays int
}

func (s *stubSink) Play(context.Context, string, float64, func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return nil
}
func (s *stubSink) Pause() error      { return nil }
func (s *stubSink) Resume() error     { return nil }
func (s *stubSink) Stop()             {}
func (s *stubSink) SetVolume(float64) {}
func (s *stubSink) Close()            {}

func (s *stubSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

type stubDialer struct{ sink *stubSink }

func (d *stubDialer) Dial(context.Context, string, string) (player.Sink, error) {
	return d.sink, nil
}

func track(name string) player.Track {
	return player.Track{Title: name, URL: name, Provider: player.ProviderYouTube}
}

func TestCreateIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Create(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = reg.Create(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	assert.False(t, created)

	// same name under a different owner is a different playlist
	created, err = reg.Create(ctx, "g1", "u2", "mix")
	require.NoError(t, err)
	assert.True(t, created)

	_, err = reg.Create(ctx, "g1", "u1", "  ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestAddAutoCreatesAndKeepsOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("a")))
	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("b")))
	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("c")))

	got, err := reg.Tracks(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].URL, got[1].URL, got[2].URL})
}

func TestAddHonorsGuildLimit(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	s, err := repo.UpsertSettings(ctx, "g1")
	require.NoError(t, err)
	s.PlaylistLimit = 2
	require.NoError(t, repo.UpdateSettings(ctx, s))

	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("a")))
	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("b")))
	assert.ErrorIs(t, reg.Add(ctx, "g1", "u1", "mix", track("c")), ErrPlaylistFull)

	got, err := reg.Tracks(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListCreationOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "g1", "u1", "first")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "g1", "u1", "second")
	require.NoError(t, err)
	require.NoError(t, reg.Add(ctx, "g1", "u1", "second", track("a")))

	got, err := reg.List(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Summary{Name: "first", Tracks: 0}, got[0])
	assert.Equal(t, Summary{Name: "second", Tracks: 1}, got[1])

	// other owners see nothing
	got, err = reg.List(ctx, "g1", "u2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteReportsExistence(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("a")))

	existed, err := reg.Delete(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = reg.Delete(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = reg.Tracks(ctx, "g1", "u1", "mix")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveShiftsLaterTracks(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track(n)))
	}

	removed, err := reg.Remove(ctx, "g1", "u1", "mix", 2)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := reg.Tracks(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "c"}, []string{got[0].URL, got[1].URL})

	// position now past the end
	removed, err = reg.Remove(ctx, "g1", "u1", "mix", 3)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = reg.Remove(ctx, "g1", "u1", "mix", 0)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = reg.Remove(ctx, "g1", "u1", "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	// the survivors compact, so appending keeps contiguous positions
	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("d")))
	got, err = reg.Tracks(ctx, "g1", "u1", "mix")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, []string{got[0].URL, got[1].URL, got[2].URL})
}

func TestPlayEnqueuesAndStartsOnlyWhenIdle(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("a")))
	require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track("b")))

	sink := &stubSink{}
	s := player.NewSession("g1", stubResolver{}, &stubDialer{sink: sink}, player.SessionOpts{})
	require.NoError(t, s.Connect(ctx, "c1"))

	added, err := reg.Play(ctx, "g1", "u1", "mix", "u1", s)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.True(t, s.IsPlaying())
	require.NotNil(t, s.Current())
	assert.Equal(t, "a", s.Current().URL)
	assert.Equal(t, "u1", s.Current().RequestedBy)
	assert.Equal(t, 1, sink.playCount())

	// playing again while busy only appends, it must not restart playback
	added, err = reg.Play(ctx, "g1", "u1", "mix", "u1", s)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, "a", s.Current().URL)
	assert.Equal(t, 1, sink.playCount())
	assert.Equal(t, 3, s.QueueSize())
}

func TestPlayMissingPlaylist(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	sink := &stubSink{}
	s := player.NewSession("g1", stubResolver{}, &stubDialer{sink: sink}, player.SessionOpts{})

	_, err := reg.Play(ctx, "g1", "u1", "nope", "u1", s)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayStopsAtFullQueue(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Add(ctx, "g1", "u1", "mix", track(n)))
	}

	sink := &stubSink{}
	s := player.NewSession("g1", stubResolver{}, &stubDialer{sink: sink}, player.SessionOpts{MaxQueueSize: 2})
	require.NoError(t, s.Connect(ctx, "c1"))

	added, err := reg.Play(ctx, "g1", "u1", "mix", "u1", s)
	assert.ErrorIs(t, err, player.ErrQueueFull)
	assert.Equal(t, 2, added)
}
