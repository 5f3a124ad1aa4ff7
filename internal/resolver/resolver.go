// Package resolver turns user queries into playable tracks. Metadata may
// come from Spotify or SoundCloud, but audio is always extracted through
// yt-dlp; a track's URL field is the extraction target, not necessarily a
// web address.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/spotify"
)

var (
	ErrNotFound         = errors.New("no results")
	ErrSpotifyDisabled  = errors.New("spotify is not configured")
	ErrUnsupportedQuery = errors.New("unsupported query")
)

type Resolver struct {
	spotify       *spotify.Client // nil when credentials are missing
	playlistLimit int
}

func New(sp *spotify.Client, playlistLimit int) *Resolver {
	return &Resolver{spotify: sp, playlistLimit: playlistLimit}
}

// StreamURL resolves a track's extraction target into a direct audio URL.
// It satisfies player.StreamResolver.
func (r *Resolver) StreamURL(ctx context.Context, t *player.Track) (string, error) {
	info, err := fetchInfo(ctx, t.URL)
	if err != nil {
		return "", err
	}
	u := audioURL(info)
	if u == "" {
		return "", fmt.Errorf("no playable format for %q", t.Title)
	}
	return u, nil
}

func isURL(q string) bool {
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}

func isYouTube(q string) bool {
	return strings.Contains(q, "youtube.com") || strings.Contains(q, "youtu.be") ||
		strings.Contains(q, "music.youtube.")
}

func isSoundCloud(q string) bool {
	return strings.Contains(q, "soundcloud.com")
}

// Resolve turns a query into one or more tracks. URLs resolve to themselves
// (playlist URLs expand); bare text is searched on the hinted provider.
func (r *Resolver) Resolve(ctx context.Context, query string, hint player.Provider) ([]player.Track, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrUnsupportedQuery
	}

	if spotify.IsSpotify(q) {
		return r.resolveSpotify(ctx, q)
	}

	if isURL(q) {
		if isYouTube(q) && strings.Contains(q, "list=") {
			return r.resolveYouTubePlaylist(ctx, q)
		}
		provider := player.ProviderYouTube
		if isSoundCloud(q) {
			provider = player.ProviderSoundCloud
		}
		info, err := fetchInfo(ctx, q)
		if err != nil {
			return nil, err
		}
		return []player.Track{infoToTrack(info, provider)}, nil
	}

	// bare text search
	switch hint {
	case player.ProviderSpotify:
		return r.searchSpotify(ctx, q)
	case player.ProviderSoundCloud:
		info, err := fetchInfo(ctx, "scsearch1:"+q)
		if err != nil {
			return nil, err
		}
		return []player.Track{infoToTrack(info, player.ProviderSoundCloud)}, nil
	default:
		info, err := fetchInfo(ctx, "ytsearch1:"+q)
		if err != nil {
			return nil, err
		}
		return []player.Track{infoToTrack(info, player.ProviderYouTube)}, nil
	}
}

func (r *Resolver) resolveYouTubePlaylist(ctx context.Context, url string) ([]player.Track, error) {
	infos, err := fetchPlaylist(ctx, url, r.playlistLimit)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}
	out := make([]player.Track, 0, len(infos))
	for _, e := range infos {
		t := infoToTrack(e, player.ProviderYouTube)
		// flat entries carry no stream info; point the extraction target
		// at the watch URL
		if t.URL == "" && e.ID != "" {
			t.URL = "https://www.youtube.com/watch?v=" + e.ID
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Resolver) resolveSpotify(ctx context.Context, q string) ([]player.Track, error) {
	if r.spotify == nil {
		return nil, ErrSpotifyDisabled
	}
	typ, id, err := spotify.ParseID(q)
	if err != nil {
		return nil, err
	}
	var tracks []spotify.Track
	switch typ {
	case "track":
		t, err := r.spotify.GetTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		tracks = []spotify.Track{t}
	case "album":
		tracks, _, err = r.spotify.GetAlbum(ctx, id, r.playlistLimit)
		if err != nil {
			return nil, err
		}
	case "playlist":
		tracks, _, err = r.spotify.GetPlaylist(ctx, id, r.playlistLimit)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported spotify type: %s", typ)
	}
	if len(tracks) == 0 {
		return nil, ErrNotFound
	}
	out := make([]player.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, spotifyToTrack(t))
	}
	return out, nil
}

func (r *Resolver) searchSpotify(ctx context.Context, q string) ([]player.Track, error) {
	if r.spotify == nil {
		return nil, ErrSpotifyDisabled
	}
	tracks, err := r.spotify.SearchTracks(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNotFound
	}
	return []player.Track{spotifyToTrack(tracks[0])}, nil
}

func infoToTrack(info *trackInfo, provider player.Provider) player.Track {
	url := info.WebpageURL
	if url == "" {
		url = info.url
	}
	duration := info.Duration
	if info.IsLive {
		duration = 0
	}
	return player.Track{
		Title:     info.Title,
		Artist:    info.Uploader,
		Duration:  duration,
		URL:       url,
		Thumbnail: info.Thumbnail,
		Provider:  provider,
	}
}

// spotifyToTrack keeps the Spotify metadata but sets a YouTube search
// expression as the extraction target.
func spotifyToTrack(t spotify.Track) player.Track {
	return player.Track{
		Title:     t.Name,
		Artist:    t.Artist,
		Album:     t.Album,
		Duration:  t.Duration,
		URL:       fmt.Sprintf(`ytsearch1:"%s" "%s"`, t.Name, t.Artist),
		Thumbnail: t.Thumbnail,
		Provider:  player.ProviderSpotify,
	}
}
