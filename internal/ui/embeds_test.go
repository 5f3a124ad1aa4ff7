package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonearm/tonearm/internal/player"
)

func track(title string, dur int) player.Track {
	return player.Track{Title: title, URL: "https://example.com/" + title, Duration: dur}
}

func TestNowPlayingEmbedStates(t *testing.T) {
	e := NowPlayingEmbed(player.Info{})
	assert.Equal(t, "Nothing Playing", e.Title)

	cur := track("song", 180)
	e = NowPlayingEmbed(player.Info{Current: &cur, Playing: true, VolumePct: 50})
	assert.Equal(t, "Now Playing", e.Title)
	assert.Contains(t, e.Description, "[song]")
	assert.Contains(t, e.Description, "3:00")

	e = NowPlayingEmbed(player.Info{Current: &cur, Paused: true})
	assert.Equal(t, "Paused", e.Title)
}

func TestNowPlayingEscapesMarkdown(t *testing.T) {
	cur := player.Track{Title: "sp*cial_name", Duration: 10}
	e := NowPlayingEmbed(player.Info{Current: &cur, Playing: true})
	assert.Contains(t, e.Description, `sp\*cial\_name`)
}

func TestQueueEmbedPaging(t *testing.T) {
	cur := track("current", 60)
	info := player.Info{Current: &cur}
	for i := 0; i < 25; i++ {
		info.Queue = append(info.Queue, track("q", 60))
	}

	e, err := QueueEmbed(info, 1, 10)
	require.NoError(t, err)
	assert.Contains(t, e.Footer.Text, "page 1 of 3")
	assert.Contains(t, e.Description, "`1.`")
	assert.NotContains(t, e.Description, "`11.`")

	e, err = QueueEmbed(info, 3, 10)
	require.NoError(t, err)
	assert.Contains(t, e.Description, "`25.`")

	_, err = QueueEmbed(info, 4, 10)
	assert.Error(t, err)

	_, err = QueueEmbed(player.Info{}, 1, 10)
	assert.Error(t, err)
}

func TestQueueEmbedLiveTrack(t *testing.T) {
	cur := player.Track{Title: "radio", URL: "https://example.com/radio", Duration: 0}
	e, err := QueueEmbed(player.Info{Current: &cur}, 1, 10)
	require.NoError(t, err)
	assert.Contains(t, e.Description, "[ live ]")
}
