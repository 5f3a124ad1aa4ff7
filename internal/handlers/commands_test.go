package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/player"
)

type stubResolver struct{}

func (stubResolver) StreamURL(_ context.Context, t *player.Track) (string, error) {
	return "stream://" + t.URL, nil
}

type stubSink struct{}

func (stubSink) Play(context.Context, string, float64, func(error)) error { return nil }
func (stubSink) Pause() error                                             { return nil }
func (stubSink) Resume() error                                            { return nil }
func (stubSink) Stop()                                                    {}
func (stubSink) SetVolume(float64)                                        {}
func (stubSink) Close()                                                   {}

type stubDialer struct{}

func (stubDialer) Dial(context.Context, string, string) (player.Sink, error) {
	return stubSink{}, nil
}

func track(u string) player.Track {
	return player.Track{Title: u, URL: u, Provider: player.ProviderYouTube}
}

func newTestPlayerSession(t *testing.T, maxQueue int) *player.Session {
	t.Helper()
	s := player.NewSession("g1", stubResolver{}, stubDialer{}, player.SessionOpts{MaxQueueSize: maxQueue})
	require.NoError(t, s.Connect(context.Background(), "c1"))
	return s
}

func queueURLs(s *player.Session) []string {
	var out []string
	for _, t := range s.Queue() {
		out = append(out, t.URL)
	}
	return out
}

func TestEnqueueTracksAppends(t *testing.T) {
	s := newTestPlayerSession(t, 10)

	added, firstPos, err := enqueueTracks(s, []player.Track{track("a"), track("b")}, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, firstPos)
	assert.Equal(t, []string{"a", "b"}, queueURLs(s))
	assert.Equal(t, "u1", s.Queue()[0].RequestedBy)
}

func TestEnqueueTracksFrontGoesAheadOfExistingQueue(t *testing.T) {
	s := newTestPlayerSession(t, 10)
	for _, n := range []string{"x", "y"} {
		_, err := s.Enqueue(track(n), -1)
		require.NoError(t, err)
	}

	added, firstPos, err := enqueueTracks(s, []player.Track{track("a"), track("b")}, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, firstPos)
	assert.Equal(t, []string{"a", "b", "x", "y"}, queueURLs(s))
}

func TestEnqueueTracksStopsWhenFull(t *testing.T) {
	s := newTestPlayerSession(t, 2)

	added, _, err := enqueueTracks(s, []player.Track{track("a"), track("b"), track("c")}, "u1", false)
	assert.ErrorIs(t, err, player.ErrQueueFull)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"a", "b"}, queueURLs(s))
}

func TestResolveCtxIsBounded(t *testing.T) {
	h := &CommandHandler{cfg: &config.Config{ResolveTimeout: 5 * time.Second}}

	ctx, cancel := h.resolveCtx(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}
