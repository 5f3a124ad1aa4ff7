package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/spotify"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Plain Title", "Plain Title"},
		{"slash/colon: star*", "slashcolon star"},
		{"dots...and (parens)", "dotsand parens"},
		{"under_score-dash", "under_score-dash"},
		{"  trimmed  ", "trimmed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestParseQuality(t *testing.T) {
	q, ok := ParseQuality("HIGH")
	assert.True(t, ok)
	assert.Equal(t, QualityHigh, q)

	_, ok = ParseQuality("ultra")
	assert.False(t, ok)
}

func TestAudioURLPreference(t *testing.T) {
	info := &trackInfo{
		url:        "https://cdn.example/direct",
		formatURLs: []string{"https://cdn.example/format0"},
	}
	assert.Equal(t, "https://cdn.example/direct", audioURL(info))

	info.url = ""
	assert.Equal(t, "https://cdn.example/format0", audioURL(info))

	info.formatURLs = nil
	assert.Equal(t, "", audioURL(info))
}

func TestInfoToTrack(t *testing.T) {
	info := &trackInfo{
		Title:      "Song",
		Uploader:   "Artist",
		Duration:   213,
		WebpageURL: "https://www.youtube.com/watch?v=abc",
		Thumbnail:  "https://i.ytimg.com/abc.jpg",
	}
	tr := infoToTrack(info, player.ProviderYouTube)
	assert.Equal(t, "Song", tr.Title)
	assert.Equal(t, "Artist", tr.Artist)
	assert.Equal(t, 213, tr.Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", tr.URL)
	assert.Equal(t, player.ProviderYouTube, tr.Provider)

	info.IsLive = true
	tr = infoToTrack(info, player.ProviderYouTube)
	assert.Equal(t, 0, tr.Duration)
}

func TestSpotifyToTrackUsesSearchTarget(t *testing.T) {
	tr := spotifyToTrack(spotify.Track{Name: "Song", Artist: "Artist", Album: "Album", Duration: 180})
	assert.Equal(t, player.ProviderSpotify, tr.Provider)
	assert.Equal(t, `ytsearch1:"Song" "Artist"`, tr.URL)
	assert.Equal(t, "Album", tr.Album)
}

func TestQueryClassification(t *testing.T) {
	assert.True(t, isURL("https://soundcloud.com/x/y"))
	assert.False(t, isURL("never gonna give you up"))
	assert.True(t, isYouTube("https://music.youtube.com/watch?v=a"))
	assert.True(t, isYouTube("https://youtu.be/a"))
	assert.True(t, isSoundCloud("https://soundcloud.com/x/y"))
	assert.False(t, isSoundCloud("https://www.youtube.com/watch?v=a"))
}
