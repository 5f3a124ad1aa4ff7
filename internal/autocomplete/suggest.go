// Package autocomplete backs the /play option autocomplete with quick
// YouTube search results and Spotify matches. Everything here is best
// effort; a failed lookup just means fewer choices.
package autocomplete

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/ppalone/ytsearch"

	"github.com/tonearm/tonearm/internal/spotify"
)

// YouTubeChoices searches YouTube and returns watch URLs as choice values,
// so picking one skips the later search round-trip.
func YouTubeChoices(ctx context.Context, query string, limit int) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	seen := make(map[string]bool)
	for _, v := range res.Results {
		if len(out) >= limit {
			break
		}
		if v.VideoID == "" || seen[v.VideoID] {
			continue
		}
		seen[v.VideoID] = true
		out = append(out, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate("YouTube: "+v.Title, 100),
			Value: "https://www.youtube.com/watch?v=" + v.VideoID,
		})
	}
	return out, nil
}

// Choices merges YouTube and Spotify suggestions up to limit entries.
func Choices(ctx context.Context, query string, sp *spotify.Client, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 {
		limit = 10
	}
	out, _ := YouTubeChoices(ctx, query, limit)

	if sp != nil {
		tracks, err := sp.SearchTracks(ctx, query, limit/2)
		if err == nil && len(tracks) > 0 {
			if len(out) > limit-len(tracks) {
				out = out[:limit-len(tracks)]
			}
			for _, t := range tracks {
				name := fmt.Sprintf("Spotify: %s", t.Name)
				if t.Artist != "" {
					name += " - " + t.Artist
				}
				out = append(out, &discordgo.ApplicationCommandOptionChoice{
					Name:  truncate(name, 100),
					Value: fmt.Sprintf(`%s %s`, t.Name, t.Artist),
				})
			}
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
