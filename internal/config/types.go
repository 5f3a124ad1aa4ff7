package config

import "time"

type Config struct {
	DiscordToken          string
	SpotifyClientID       string
	SpotifyClientSecret   string
	DataDir               string
	MusicDir              string
	WebAddr               string
	MaxQueueSize          int
	MaxPlaylistSize       int
	ResolveTimeout        time.Duration
	BotStatus             string // online/dnd/idle
	BotActivity           string
	RegisterCommandsOnBot bool
}
