package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tonearm/tonearm/internal/autocomplete"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/playlist"
	"github.com/tonearm/tonearm/internal/repository"
	"github.com/tonearm/tonearm/internal/resolver"
	"github.com/tonearm/tonearm/internal/spotify"
	"github.com/tonearm/tonearm/internal/ui"
	"github.com/tonearm/tonearm/internal/utils"
)

// Discord rejects attachments above this without boost; larger downloads
// stay reachable through the web library.
const maxAttachmentBytes = 25 << 20

type CommandHandler struct {
	cfg       *config.Config
	repo      *repository.Repo
	pm        *player.Manager
	playlists *playlist.Registry
	res       *resolver.Resolver
	sp        *spotify.Client
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, pm *player.Manager, playlists *playlist.Registry, res *resolver.Resolver, sp *spotify.Client) *CommandHandler {
	return &CommandHandler{cfg: cfg, repo: repo, pm: pm, playlists: playlists, res: res, sp: sp}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song (URL or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "next", Description: "add to front of queue", Type: discordgo.ApplicationCommandOptionBoolean},
				{Name: "shuffle", Description: "shuffle the added tracks", Type: discordgo.ApplicationCommandOptionBoolean},
				{Name: "provider", Description: "where to search", Type: discordgo.ApplicationCommandOptionString, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "YouTube", Value: "youtube"},
					{Name: "Spotify", Value: "spotify"},
					{Name: "SoundCloud", Value: "soundcloud"},
				}},
			},
		},
		{Name: "pause", Description: "Pause the current song"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "skip", Description: "Skip to the next song"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "disconnect", Description: "Leave the voice channel (queue survives)"},
		{Name: "now-playing", Description: "Show the currently playing song"},
		{
			Name:        "queue",
			Description: "Show the current queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
				{Name: "page-size", Description: "items per page [default: guild setting, max: 30]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{
			Name:        "loop",
			Description: "Set the loop mode",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "mode", Description: "loop mode", Type: discordgo.ApplicationCommandOptionString, Required: true, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "off", Value: "off"},
					{Name: "track", Value: "track"},
					{Name: "queue", Value: "queue"},
				}},
			},
		},
		{
			Name:        "shuffle",
			Description: "Toggle shuffled playback",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "enabled", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
			},
		},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "level", Description: "0-100", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "move",
			Description: "Move a song within the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "from", Description: "position of the song to move", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				{Name: "to", Description: "position to move the song to", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "remove",
			Description: "Remove songs from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position of the song to remove [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
				{Name: "range", Description: "number of songs to remove [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{
			Name:        "playlist",
			Description: "Manage your playlists",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "create an empty playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "add a song to a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "play",
					Description: "queue up a whole playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "remove a song from a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "position", Description: "position of the song to remove", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "list your playlists",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "delete",
					Description: "delete a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
		{
			Name:        "download",
			Description: "Download a song as mp3",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "quality", Description: "audio quality", Type: discordgo.ApplicationCommandOptionString, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "high", Value: "high"},
					{Name: "medium", Value: "medium"},
					{Name: "low", Value: "low"},
				}},
			},
		},
		{
			Name:        "config",
			Description: "Configure per-guild settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-default-volume", Description: "volume for fresh sessions", Options: []*discordgo.ApplicationCommandOption{
					{Name: "level", Description: "0-100", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-queue-page-size", Description: "default queue page size", Options: []*discordgo.ApplicationCommandOption{
					{Name: "page_size", Description: "1-30", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-playlist-limit", Description: "max tracks per playlist", Options: []*discordgo.ApplicationCommandOption{
					{Name: "limit", Description: "max tracks", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
			},
		},
	}

	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, c); err != nil {
			slog.Error("failed to create application command", "guildID", guildID, "command", c.Name, "err", err)
			return err
		}
		slog.Debug("registered command", "guildID", guildID, "command", c.Name)
	}

	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "disconnect":
		h.cmdDisconnect(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "shuffle":
		h.cmdShuffle(s, i)
	case "volume":
		h.cmdVolume(s, i)
	case "move":
		h.cmdMove(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "playlist":
		h.cmdPlaylist(s, i)
	case "download":
		h.cmdDownload(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" && data.Name != "download" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused && opt.Name == "query" {
			query = opt.StringValue()
			break
		}
	}

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if strings.TrimSpace(query) != "" {
		ctx, cancel := h.resolveCtx(context.Background())
		choices = autocomplete.Choices(ctx, query, h.sp, 10)
		cancel()
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}); err != nil {
		slog.Warn("embed reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReplyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}); err != nil {
		slog.Warn("edit embed reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// connectedSession joins the caller's voice channel and applies the guild's
// default volume to sessions that were idle and unconnected.
func (h *CommandHandler) connectedSession(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (*player.Session, error) {
	chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
	if !ok {
		return nil, errors.New("gotta be in a voice channel")
	}

	sess := h.pm.Get(i.GuildID)
	if !sess.IsConnected() {
		if set, err := h.repo.UpsertSettings(ctx, i.GuildID); err == nil {
			if err := sess.SetVolume(set.DefaultVolume); err != nil {
				slog.Warn("default volume out of range", "guildID", i.GuildID, "volume", set.DefaultVolume)
			}
		}
	}
	if err := sess.Connect(ctx, chID); err != nil {
		slog.Warn("voice connect failed", "guildID", i.GuildID, "channelID", chID, "err", err)
		return nil, errors.New("couldn't connect to channel")
	}
	return sess, nil
}

// resolveCtx bounds a resolver network call by the configured timeout.
func (h *CommandHandler) resolveCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.cfg.ResolveTimeout)
}

// enqueueTracks adds tracks in order, at the front of the queue when front
// is set, and reports how many made it in along with the 1-based position
// of the first. A full queue stops the loop and surfaces ErrQueueFull with
// the partial count.
func enqueueTracks(sess *player.Session, tracks []player.Track, requestedBy string, front bool) (added, firstPos int, err error) {
	for n, t := range tracks {
		t.RequestedBy = requestedBy
		position := -1
		if front {
			position = n
		}
		pos, err := sess.Enqueue(t, position)
		if err != nil {
			return added, firstPos, err
		}
		if added == 0 {
			firstPos = pos
		}
		added++
	}
	return added, firstPos, nil
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var query, providerHint string
	var front, shuffleAdd bool
	for _, o := range i.ApplicationCommandData().Options {
		switch o.Name {
		case "query":
			query = o.StringValue()
		case "next":
			front = o.BoolValue()
		case "shuffle":
			shuffleAdd = o.BoolValue()
		case "provider":
			providerHint = o.StringValue()
		}
	}
	slog.Info("cmd play", "guildID", i.GuildID, "userID", userIDOf(i), "query", query, "next", front, "shuffle", shuffleAdd, "provider", providerHint)

	ctx := context.Background()
	h.deferReply(s, i, false)

	sess, err := h.connectedSession(ctx, s, i)
	if err != nil {
		h.editReply(s, i, err.Error())
		return
	}

	rctx, cancel := h.resolveCtx(ctx)
	tracks, err := h.res.Resolve(rctx, query, player.Provider(providerHint))
	cancel()
	if err != nil || len(tracks) == 0 {
		slog.Debug("resolve query failed", "guildID", i.GuildID, "query", query, "err", err)
		h.editReply(s, i, "no songs found")
		return
	}
	if shuffleAdd && len(tracks) > 1 {
		utils.ShuffleSlice(tracks)
	}

	added, firstPos, err := enqueueTracks(sess, tracks, userIDOf(i), front)
	if err != nil {
		if !errors.Is(err, player.ErrQueueFull) {
			h.editReply(s, i, "couldn't add to queue")
			return
		}
		slog.Debug("queue full", "guildID", i.GuildID, "added", added)
	}
	if added == 0 {
		h.editReply(s, i, "the queue is full")
		return
	}

	// no-op when something is already playing
	sess.PlayNext(ctx)

	if added == 1 {
		h.editReplyEmbed(s, i, ui.TrackAddedEmbed(tracks[0], firstPos))
	} else {
		h.editReply(s, i, fmt.Sprintf("added %d tracks to the queue", added))
	}
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.pm.Get(i.GuildID)
	if err := sess.Pause(); err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd pause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "paused", false)
}

func (h *CommandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.pm.Get(i.GuildID)
	if err := sess.Resume(); err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd resume", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "resumed", false)
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.pm.Get(i.GuildID)
	if err := sess.Skip(); err != nil {
		h.reply(s, i, "nothing to skip", true)
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "skipped", false)
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.pm.Peek(i.GuildID)
	if sess == nil || !sess.IsConnected() {
		h.reply(s, i, "not connected", true)
		return
	}
	sess.Stop()
	slog.Info("cmd stop", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "stopped and cleared the queue", false)
}

func (h *CommandHandler) cmdDisconnect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.pm.Peek(i.GuildID)
	if sess == nil || !sess.IsConnected() {
		h.reply(s, i, "not connected", true)
		return
	}
	sess.Disconnect()
	slog.Info("cmd disconnect", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "disconnected, the queue is still here", false)
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.pm.Get(i.GuildID)
	h.replyEmbed(s, i, ui.NowPlayingEmbed(sess.Snapshot()))
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	set, err := h.repo.UpsertSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "failed to fetch settings", true)
		return
	}

	page := 1
	pageSize := set.QueuePageSize
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "page" {
			page = int(o.IntValue())
		} else if o.Name == "page-size" {
			pageSize = int(o.IntValue())
			if pageSize < 1 {
				pageSize = 1
			}
			if pageSize > 30 {
				pageSize = 30
			}
		}
	}

	sess := h.pm.Get(i.GuildID)
	embed, err := ui.QueueEmbed(sess.Snapshot(), page, pageSize)
	if err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	h.replyEmbed(s, i, embed)
	slog.Debug("cmd queue", "guildID", i.GuildID, "userID", userIDOf(i), "page", page, "pageSize", pageSize)
}

func (h *CommandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var raw string
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "mode" {
			raw = o.StringValue()
		}
	}
	mode, ok := player.ParseLoopMode(raw)
	if !ok {
		h.reply(s, i, "loop mode must be off, track or queue", true)
		return
	}
	sess := h.pm.Get(i.GuildID)
	if err := sess.SetLoopMode(mode); err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd loop", "guildID", i.GuildID, "userID", userIDOf(i), "mode", mode)
	h.reply(s, i, fmt.Sprintf("loop mode set to %s", mode), false)
}

func (h *CommandHandler) cmdShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var on bool
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "enabled" {
			on = o.BoolValue()
		}
	}
	sess := h.pm.Get(i.GuildID)
	sess.SetShuffle(on)
	slog.Info("cmd shuffle", "guildID", i.GuildID, "userID", userIDOf(i), "on", on)
	if on {
		h.reply(s, i, "shuffle on", false)
	} else {
		h.reply(s, i, "shuffle off", false)
	}
}

func (h *CommandHandler) cmdVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	level := -1
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "level" {
			level = int(o.IntValue())
		}
	}
	sess := h.pm.Get(i.GuildID)
	if err := sess.SetVolume(level); err != nil {
		h.reply(s, i, "volume must be between 0 and 100", true)
		return
	}
	slog.Info("cmd volume", "guildID", i.GuildID, "userID", userIDOf(i), "level", level)
	h.reply(s, i, fmt.Sprintf("volume set to %d%%", level), false)
}

func (h *CommandHandler) cmdMove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var from, to int
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "from" {
			from = int(o.IntValue())
		}
		if o.Name == "to" {
			to = int(o.IntValue())
		}
	}
	sess := h.pm.Get(i.GuildID)
	item, err := sess.Move(from, to)
	if err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd move", "guildID", i.GuildID, "userID", userIDOf(i), "from", from, "to", to, "title", item.Title)
	h.reply(s, i, fmt.Sprintf("moved %s to position %d", utils.EscapeMd(item.Title), to), false)
}

func (h *CommandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	pos := 1
	cnt := 1
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "position" {
			pos = int(o.IntValue())
		} else if o.Name == "range" {
			cnt = int(o.IntValue())
		}
	}
	sess := h.pm.Get(i.GuildID)
	if err := sess.RemoveFromQueue(pos, cnt); err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd remove", "guildID", i.GuildID, "userID", userIDOf(i), "pos", pos, "cnt", cnt)
	h.reply(s, i, ":wastebasket: removed", false)
}

func (h *CommandHandler) cmdPlaylist(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	ctx := context.Background()
	owner := userIDOf(i)

	var name, query string
	var position int
	for _, o := range sub.Options {
		switch o.Name {
		case "name":
			name = o.StringValue()
		case "query":
			query = o.StringValue()
		case "position":
			position = int(o.IntValue())
		}
	}

	switch sub.Name {
	case "create":
		created, err := h.playlists.Create(ctx, i.GuildID, owner, name)
		if err != nil {
			slog.Warn("playlist create failed", "guildID", i.GuildID, "userID", owner, "name", name, "err", err)
			h.reply(s, i, "failed to create playlist", true)
			return
		}
		slog.Info("playlist created", "guildID", i.GuildID, "userID", owner, "name", name, "created", created)
		if created {
			h.reply(s, i, "playlist created", false)
		} else {
			h.reply(s, i, "that playlist already exists", true)
		}

	case "add":
		h.deferReply(s, i, false)
		rctx, cancel := h.resolveCtx(ctx)
		tracks, err := h.res.Resolve(rctx, query, "")
		cancel()
		if err != nil || len(tracks) == 0 {
			h.editReply(s, i, "no songs found")
			return
		}
		t := tracks[0]
		if err := h.playlists.Add(ctx, i.GuildID, owner, name, t); err != nil {
			if errors.Is(err, playlist.ErrPlaylistFull) {
				h.editReply(s, i, "that playlist is full")
				return
			}
			slog.Warn("playlist add failed", "guildID", i.GuildID, "userID", owner, "name", name, "err", err)
			h.editReply(s, i, "failed to add to playlist")
			return
		}
		slog.Info("playlist add", "guildID", i.GuildID, "userID", owner, "name", name, "title", t.Title)
		h.editReply(s, i, fmt.Sprintf("added %s to %s", utils.EscapeMd(t.Title), utils.EscapeMd(name)))

	case "play":
		h.deferReply(s, i, false)
		sess, err := h.connectedSession(ctx, s, i)
		if err != nil {
			h.editReply(s, i, err.Error())
			return
		}
		added, err := h.playlists.Play(ctx, i.GuildID, owner, name, owner, sess)
		if err != nil {
			switch {
			case errors.Is(err, playlist.ErrNotFound):
				h.editReply(s, i, "no playlist with that name exists")
			case errors.Is(err, player.ErrQueueFull):
				h.editReply(s, i, fmt.Sprintf("queue filled up after %d tracks", added))
			default:
				slog.Warn("playlist play failed", "guildID", i.GuildID, "userID", owner, "name", name, "err", err)
				h.editReply(s, i, "failed to play playlist")
			}
			return
		}
		slog.Info("playlist play", "guildID", i.GuildID, "userID", owner, "name", name, "added", added)
		h.editReply(s, i, fmt.Sprintf("queued %d tracks from %s", added, utils.EscapeMd(name)))

	case "remove":
		removed, err := h.playlists.Remove(ctx, i.GuildID, owner, name, position)
		if err != nil {
			if errors.Is(err, playlist.ErrNotFound) {
				h.reply(s, i, "no playlist with that name exists", true)
				return
			}
			slog.Warn("playlist remove failed", "guildID", i.GuildID, "userID", owner, "name", name, "position", position, "err", err)
			h.reply(s, i, "failed to remove from playlist", true)
			return
		}
		if !removed {
			h.reply(s, i, "no song at that position", true)
			return
		}
		slog.Info("playlist track removed", "guildID", i.GuildID, "userID", owner, "name", name, "position", position)
		h.reply(s, i, ":wastebasket: removed", false)

	case "list":
		items, err := h.playlists.List(ctx, i.GuildID, owner)
		if err != nil {
			slog.Warn("playlist list failed", "guildID", i.GuildID, "userID", owner, "err", err)
			h.reply(s, i, "failed to list playlists", true)
			return
		}
		if len(items) == 0 {
			h.reply(s, i, "you don't have any playlists yet", true)
			return
		}
		var b strings.Builder
		for _, p := range items {
			fmt.Fprintf(&b, "• %s (%d tracks)\n", utils.EscapeMd(p.Name), p.Tracks)
		}
		h.reply(s, i, b.String(), true)

	case "delete":
		existed, err := h.playlists.Delete(ctx, i.GuildID, owner, name)
		if err != nil {
			slog.Warn("playlist delete failed", "guildID", i.GuildID, "userID", owner, "name", name, "err", err)
			h.reply(s, i, "failed to delete playlist", true)
			return
		}
		if !existed {
			h.reply(s, i, "no playlist with that name exists", true)
			return
		}
		slog.Info("playlist deleted", "guildID", i.GuildID, "userID", owner, "name", name)
		h.reply(s, i, "playlist deleted", false)
	}
}

func (h *CommandHandler) cmdDownload(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var query string
	rawQuality := "high"
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "query" {
			query = o.StringValue()
		} else if o.Name == "quality" {
			rawQuality = o.StringValue()
		}
	}
	quality, ok := resolver.ParseQuality(rawQuality)
	if !ok {
		quality = resolver.QualityHigh
	}
	slog.Info("cmd download", "guildID", i.GuildID, "userID", userIDOf(i), "query", query, "quality", quality)

	h.deferReply(s, i, false)

	path, track, err := h.res.Download(context.Background(), query, quality, h.cfg.MusicDir, nil)
	if err != nil {
		slog.Warn("download failed", "guildID", i.GuildID, "query", query, "err", err)
		h.editReply(s, i, "download failed")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		h.editReply(s, i, "download failed")
		return
	}
	if info.Size() > maxAttachmentBytes {
		h.editReply(s, i, fmt.Sprintf("%s is too big to attach, grab it from the web library", utils.EscapeMd(track.Title)))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.editReply(s, i, "download failed")
		return
	}
	defer f.Close()

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{ui.DownloadEmbed(track, string(quality))},
		Files: []*discordgo.File{
			{Name: info.Name(), ContentType: "audio/mpeg", Reader: f},
		},
	}); err != nil {
		slog.Warn("download attach failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	set, err := h.repo.UpsertSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "failed to fetch config", true)
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "get":
		msg := fmt.Sprintf(
			"Config\n- Default volume: %d\n- Queue page size: %d\n- Playlist limit: %d",
			set.DefaultVolume, set.QueuePageSize, set.PlaylistLimit,
		)
		h.reply(s, i, msg, false)
	case "set-default-volume":
		val := int(sub.Options[0].IntValue())
		if val < 0 || val > 100 {
			h.reply(s, i, "volume must be between 0 and 100", true)
			return
		}
		set.DefaultVolume = val
		if err := h.repo.UpdateSettings(ctx, set); err != nil {
			h.reply(s, i, "failed to update config", true)
			return
		}
		slog.Info("config updated", "guildID", i.GuildID, "key", "DefaultVolume", "value", val)
		h.reply(s, i, "default volume updated", false)
	case "set-queue-page-size":
		val := int(sub.Options[0].IntValue())
		if val < 1 || val > 30 {
			h.reply(s, i, "page size must be between 1 and 30", true)
			return
		}
		set.QueuePageSize = val
		if err := h.repo.UpdateSettings(ctx, set); err != nil {
			h.reply(s, i, "failed to update config", true)
			return
		}
		slog.Info("config updated", "guildID", i.GuildID, "key", "QueuePageSize", "value", val)
		h.reply(s, i, "queue page size updated", false)
	case "set-playlist-limit":
		val := int(sub.Options[0].IntValue())
		if val < 1 {
			h.reply(s, i, "invalid limit", true)
			return
		}
		set.PlaylistLimit = val
		if err := h.repo.UpdateSettings(ctx, set); err != nil {
			h.reply(s, i, "failed to update config", true)
			return
		}
		slog.Info("config updated", "guildID", i.GuildID, "key", "PlaylistLimit", "value", val)
		h.reply(s, i, "playlist limit updated", false)
	}
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil || i.Member == nil || i.Member.User == nil {
		return ""
	}
	return i.Member.User.ID
}
