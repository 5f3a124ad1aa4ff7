// Package ui builds the Discord embeds shown by command replies.
package ui

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/utils"
)

const (
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000
	colorNeutral = 0x2B6CB0
	colorError   = 0x992222
)

// trackLink renders a markdown link when the track has a real URL; search
// expressions fall back to plain text.
func trackLink(t player.Track) string {
	title := utils.EscapeMd(t.Title)
	if strings.HasPrefix(t.URL, "http") {
		return fmt.Sprintf("[%s](%s)", title, t.URL)
	}
	return title
}

func trackDuration(t player.Track) string {
	if t.Duration <= 0 {
		return "live"
	}
	return utils.PrettyTime(t.Duration)
}

func loopIcon(m player.LoopMode) string {
	switch m {
	case player.LoopTrack:
		return "🔂"
	case player.LoopQueue:
		return "🔁"
	}
	return ""
}

func NowPlayingEmbed(info player.Info) *discordgo.MessageEmbed {
	if info.Current == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "The queue is empty",
			Color:       colorError,
		}
	}
	cur := *info.Current

	title := "Now Playing"
	color := colorPlaying
	if info.Paused {
		title = "Paused"
		color = colorPaused
	}

	flags := loopIcon(info.LoopMode)
	if info.Shuffle {
		flags += "🔀"
	}

	desc := fmt.Sprintf("**%s** `[ %s ]` %s", trackLink(cur), trackDuration(cur), flags)
	if cur.RequestedBy != "" {
		desc += fmt.Sprintf("\nRequested by: <@%s>", cur.RequestedBy)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%s · volume %d%% · %d in queue", cur.Provider, info.VolumePct, len(info.Queue)),
		},
	}
	if cur.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cur.Thumbnail}
	}
	return embed
}

// QueueEmbed renders one 1-based page of the queue.
func QueueEmbed(info player.Info, page, pageSize int) (*discordgo.MessageEmbed, error) {
	if info.Current == nil && len(info.Queue) == 0 {
		return nil, fmt.Errorf("queue is empty")
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if page <= 0 {
		page = 1
	}
	maxPage := (len(info.Queue) + pageSize - 1) / pageSize
	if maxPage == 0 {
		maxPage = 1
	}
	if page > maxPage {
		return nil, fmt.Errorf("the queue isn't that big")
	}

	var sb strings.Builder
	if info.Current != nil {
		fmt.Fprintf(&sb, "**%s** `[ %s ]`\n\n", trackLink(*info.Current), trackDuration(*info.Current))
	}

	begin := (page - 1) * pageSize
	end := begin + pageSize
	if end > len(info.Queue) {
		end = len(info.Queue)
	}
	for i := begin; i < end; i++ {
		t := info.Queue[i]
		fmt.Fprintf(&sb, "`%d.` %s `[ %s ]`\n", i+1, trackLink(t), trackDuration(t))
	}

	total := 0
	for _, t := range info.Queue {
		total += t.Duration
	}

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       colorNeutral,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("page %d of %d · %d tracks · %s total", page, maxPage, len(info.Queue), utils.PrettyTime(total)),
		},
	}, nil
}

func TrackAddedEmbed(t player.Track, position int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Added to Queue",
		Description: fmt.Sprintf("**%s** `[ %s ]` at position %d", trackLink(t), trackDuration(t), position),
		Color:       colorNeutral,
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return embed
}

func DownloadEmbed(t player.Track, quality string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Download Ready",
		Description: fmt.Sprintf("**%s** `[ %s ]` (%s quality)", trackLink(t), trackDuration(t), quality),
		Color:       colorNeutral,
	}
}
