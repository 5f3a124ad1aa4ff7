// Package spotify wraps the web API with client-credentials auth. Spotify is
// a metadata source only; audio always comes from elsewhere.
package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

type Track struct {
	Name      string
	Artist    string
	Album     string
	Duration  int // seconds
	Thumbnail string
}

type CollectionMeta struct {
	Title  string
	Source string
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(clientID, clientSecret string) (*Client, error) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	cl := spotify.New(httpClient, spotify.WithRetry(true))
	return &Client{raw: cl}, nil
}

// ParseID recognizes spotify: URIs and open.spotify.com URLs.
func ParseID(raw string) (typ string, id spotify.ID, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("invalid spotify URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", fmt.Errorf("not a spotify URL")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid spotify URL path")
	}
	switch parts[0] {
	case "album", "playlist", "track":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type")
}

func IsSpotify(s string) bool {
	return strings.HasPrefix(s, "spotify:") || strings.Contains(s, "open.spotify.com")
}

func fromFullTrack(t *spotify.FullTrack) Track {
	out := Track{
		Name:     t.Name,
		Duration: int(t.Duration / 1000),
		Album:    t.Album.Name,
	}
	if len(t.Artists) > 0 {
		out.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		out.Thumbnail = t.Album.Images[0].URL
	}
	return out
}

func fromSimpleTrack(t spotify.SimpleTrack, album string, thumb string) Track {
	out := Track{
		Name:      t.Name,
		Duration:  int(t.Duration / 1000),
		Album:     album,
		Thumbnail: thumb,
	}
	if len(t.Artists) > 0 {
		out.Artist = t.Artists[0].Name
	}
	return out
}

func (c *Client) GetTrack(ctx context.Context, id spotify.ID) (Track, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return Track{}, err
	}
	return fromFullTrack(t), nil
}

func (c *Client) GetAlbum(ctx context.Context, id spotify.ID, limit int) ([]Track, CollectionMeta, error) {
	alb, err := c.raw.GetAlbum(ctx, id)
	if err != nil {
		return nil, CollectionMeta{}, err
	}
	thumb := ""
	if len(alb.Images) > 0 {
		thumb = alb.Images[0].URL
	}
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return nil, CollectionMeta{}, err
	}
	out := make([]Track, 0, page.Total)
	add := func(items []spotify.SimpleTrack) {
		for _, t := range items {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, fromSimpleTrack(t, alb.Name, thumb))
		}
	}
	add(page.Tracks)
	for page.Next != "" && (limit == 0 || len(out) < limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Tracks)
	}
	meta := CollectionMeta{Title: alb.Name, Source: alb.ExternalURLs["spotify"]}
	return out, meta, nil
}

func (c *Client) GetPlaylist(ctx context.Context, id spotify.ID, limit int) ([]Track, CollectionMeta, error) {
	pl, err := c.raw.GetPlaylist(ctx, id)
	if err != nil {
		return nil, CollectionMeta{}, err
	}
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, CollectionMeta{}, err
	}
	out := make([]Track, 0, page.Total)
	add := func(items []spotify.PlaylistItem) {
		for _, it := range items {
			if it.Track.Track == nil {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, fromFullTrack(it.Track.Track))
		}
	}
	add(page.Items)
	for page.Next != "" && (limit == 0 || len(out) < limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Items)
	}
	meta := CollectionMeta{Title: pl.Name, Source: pl.ExternalURLs["spotify"]}
	return out, meta, nil
}

// SearchTracks backs the /play autocomplete.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeTrack)
	if err != nil {
		return nil, err
	}
	tracks := res.Tracks.Tracks
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	out := make([]Track, 0, len(tracks))
	for i := range tracks {
		out = append(out, fromFullTrack(&tracks[i]))
	}
	return out, nil
}
