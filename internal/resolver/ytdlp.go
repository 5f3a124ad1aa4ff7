package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
)

var installOnce sync.Once

func ensureInstalled(ctx context.Context) {
	installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})
}

// trackInfo is the slice of yt-dlp output this package cares about.
type trackInfo struct {
	ID         string
	Title      string
	Uploader   string
	Duration   int // seconds
	IsLive     bool
	WebpageURL string
	Thumbnail  string

	url        string
	formatURLs []string
}

func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}

func mapInfo(ext *ytdlp.ExtractedInfo) *trackInfo {
	out := &trackInfo{
		ID:         ext.ID,
		Title:      s(ext.Title),
		Uploader:   s(ext.Uploader),
		Duration:   int(f(ext.Duration)),
		IsLive:     b(ext.IsLive),
		WebpageURL: s(ext.WebpageURL),
		url:        s(ext.URL),
	}
	for _, t := range ext.Thumbnails {
		if t != nil && t.URL != "" {
			out.Thumbnail = t.URL
		}
	}
	for _, rf := range ext.RequestedFormats {
		if rf != nil {
			out.formatURLs = append(out.formatURLs, rf.URL)
		}
	}
	for _, ff := range ext.Formats {
		if ff != nil {
			out.formatURLs = append(out.formatURLs, ff.URL)
		}
	}
	return out
}

// fetchInfo runs yt-dlp -J against target, which may be a URL or a search
// expression like "ytsearch1:query". Search containers are unwrapped to
// their first entry.
func fetchInfo(ctx context.Context, target string) (*trackInfo, error) {
	ensureInstalled(ctx)

	cmd := ytdlp.New().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoCheckCertificates().
		NoPlaylist().
		DumpJSON()

	res, err := cmd.Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("parse yt-dlp json: no info returned")
	}
	ext := infos[0]
	if len(ext.Entries) > 0 {
		for _, e := range ext.Entries {
			if e != nil {
				return mapInfo(e), nil
			}
		}
		return nil, fmt.Errorf("yt-dlp returned only empty entries")
	}
	return mapInfo(ext), nil
}

// fetchPlaylist flattens a playlist URL without resolving each entry.
func fetchPlaylist(ctx context.Context, url string, limit int) ([]*trackInfo, error) {
	ensureInstalled(ctx)

	cmd := ytdlp.New().
		FlatPlaylist().
		DumpJSON()
	if limit > 0 {
		cmd = cmd.PlaylistItems(fmt.Sprintf("1-%d", limit))
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist fetch: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp playlist json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("empty playlist info")
	}
	entries := infos[0].Entries
	out := make([]*trackInfo, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		out = append(out, mapInfo(e))
	}
	return out, nil
}

// audioURL picks the best playable URL from the extracted formats.
func audioURL(info *trackInfo) string {
	if strings.HasPrefix(info.url, "http") {
		return info.url
	}
	for _, u := range info.formatURLs {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	return ""
}
