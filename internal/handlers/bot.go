package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/playlist"
	"github.com/tonearm/tonearm/internal/repository"
	"github.com/tonearm/tonearm/internal/resolver"
	"github.com/tonearm/tonearm/internal/spotify"
	"github.com/tonearm/tonearm/internal/voice"
)

type Bot struct {
	cfg       *config.Config
	repo      *repository.Repo
	playlists *playlist.Registry
	res       *resolver.Resolver
	sp        *spotify.Client
}

func NewBot(cfg *config.Config, repo *repository.Repo, playlists *playlist.Registry, res *resolver.Resolver, sp *spotify.Client) *Bot {
	return &Bot{cfg: cfg, repo: repo, playlists: playlists, res: res, sp: sp}
}

// Run connects to the gateway and blocks until ctx is canceled. The voice
// dialer and per-guild session manager are bound to the gateway session, so
// they are built here rather than in the constructor.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	pm := player.NewManager(b.res, voice.NewDialer(dg), player.SessionOpts{
		MaxQueueSize:   b.cfg.MaxQueueSize,
		ResolveTimeout: b.cfg.ResolveTimeout,
	})
	cmd := NewCommandHandler(b.cfg, b.repo, pm, b.playlists, b.res, b.sp)

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
		} else {
			var wg sync.WaitGroup
			for _, g := range s.State.Guilds {
				wg.Add(1)
				go func(guildID string) {
					defer wg.Done()
					if err := cmd.RegisterCommands(s, appID, guildID); err != nil {
						slog.Error("register guild commands", "guild", guildID, "err", err)
					}
				}(g.ID)
			}
			wg.Wait()

			_, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{})
			if err != nil {
				slog.Error("clear global commands", "err", err)
			} else {
				slog.Info("cleared global application commands")
			}

			slog.Info("registered commands on all guilds")
		}
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		appID := s.State.User.ID
		if err := cmd.RegisterCommands(s, appID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		} else {
			slog.Info("registered commands on new guild", "guild", g.ID)
		}
	})

	// Interactions
	dg.AddHandler(cmd.HandleInteraction)

	// Leave the voice channel once nobody is left listening.
	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		sess := pm.Peek(vs.GuildID)
		if sess == nil || !sess.IsConnected() {
			return
		}
		if getNonBotSize(s, vs.GuildID, sess.ChannelID()) == 0 {
			slog.Info("voice channel empty, disconnecting", "guildID", vs.GuildID)
			sess.Disconnect()
		}
	})

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	return nil
}

func getNonBotSize(s *discordgo.Session, guildID, channelID string) int {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			m, _ := s.State.Member(guildID, vs.UserID)
			if m != nil && m.User != nil && !m.User.Bot {
				n++
			}
		}
	}
	return n
}
