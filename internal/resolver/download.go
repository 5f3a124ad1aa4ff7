package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/tonearm/tonearm/internal/player"
)

// Quality selects the source format for downloads.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

func ParseQuality(s string) (Quality, bool) {
	switch Quality(strings.ToLower(s)) {
	case QualityHigh, QualityMedium, QualityLow:
		return Quality(strings.ToLower(s)), true
	}
	return "", false
}

func (q Quality) formatSelector() string {
	switch q {
	case QualityMedium:
		return "bestaudio[height<=480]/bestaudio/best"
	case QualityLow:
		return "bestaudio[height<=360]/bestaudio/best"
	default:
		return "bestaudio[ext=m4a]/bestaudio/best"
	}
}

// DownloadStatus is the progress vocabulary surfaced to clients.
type DownloadStatus string

const (
	StatusDownloading DownloadStatus = "downloading"
	StatusConverting  DownloadStatus = "converting"
	StatusCompleted   DownloadStatus = "completed"
	StatusError       DownloadStatus = "error"
)

type DownloadProgress struct {
	Status  DownloadStatus
	Percent float64
}

// sanitizeFilename keeps letters, digits, spaces, underscores and dashes.
func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteRune(c)
		case c == ' ' || c == '_' || c == '-':
			sb.WriteRune(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

// Download fetches the query's audio as an mp3 under dir, embedding tags and
// cover art. Bare text is searched on YouTube first. The progress callback,
// when non-nil, receives downloading and converting updates; completion and
// failure are the return values.
func (r *Resolver) Download(ctx context.Context, query string, quality Quality, dir string, progress func(DownloadProgress)) (string, player.Track, error) {
	q := strings.TrimSpace(query)
	target := q
	if !isURL(q) {
		target = "ytsearch1:" + q
	}

	info, err := fetchInfo(ctx, target)
	if err != nil {
		return "", player.Track{}, fmt.Errorf("lookup: %w", err)
	}
	track := infoToTrack(info, player.ProviderYouTube)

	name := sanitizeFilename(info.Title)
	if name == "" {
		name = sanitizeFilename(q)
	}
	if name == "" {
		name = info.ID
	}

	cmd := ytdlp.New().
		Format(quality.formatSelector()).
		NoPlaylist().
		NoCheckCertificates().
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("192K").
		EmbedMetadata().
		EmbedThumbnail().
		Output(filepath.Join(dir, name+".%(ext)s"))

	if progress != nil {
		cmd = cmd.ProgressFunc(500*time.Millisecond, func(u ytdlp.ProgressUpdate) {
			switch u.Status {
			case ytdlp.ProgressStatusDownloading:
				progress(DownloadProgress{Status: StatusDownloading, Percent: u.Percent()})
			case ytdlp.ProgressStatusPostProcessing:
				progress(DownloadProgress{Status: StatusConverting, Percent: 100})
			}
		})
	}

	target = info.WebpageURL
	if target == "" {
		target = q
	}
	if _, err := cmd.Run(ctx, target); err != nil {
		return "", player.Track{}, fmt.Errorf("download: %w", err)
	}

	path := filepath.Join(dir, name+".mp3")
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		return "", player.Track{}, fmt.Errorf("download produced no file at %s", path)
	}
	return path, track, nil
}
