package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tonearm/tonearm/internal/utils"
)

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// getenvSeconds accepts plain seconds or 1h2m3s style values.
func getenvSeconds(key string, def int) int {
	if v := utils.ParseDurationString(os.Getenv(key)); v > 0 {
		return v
	}
	return def
}

func LoadConfig() (*Config, error) {
	dataDir := getenv("DATA_DIR", "./data")
	musicDir := getenv("MUSIC_DIR", filepath.Join(dataDir, "music"))

	cfg := &Config{
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		SpotifyClientID:       os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		DataDir:               dataDir,
		MusicDir:              musicDir,
		WebAddr:               getenv("WEB_ADDR", ":8080"),
		MaxQueueSize:          getenvInt("MAX_QUEUE_SIZE", 100),
		MaxPlaylistSize:       getenvInt("MAX_PLAYLIST_SIZE", 50),
		ResolveTimeout:        time.Duration(getenvSeconds("RESOLVE_TIMEOUT", 10)) * time.Second,
		BotStatus:             getenv("BOT_STATUS", "online"),
		BotActivity:           getenv("BOT_ACTIVITY", "music"),
		RegisterCommandsOnBot: getenv("REGISTER_COMMANDS_ON_BOT", "false") == "true",
	}

	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.MusicDir, 0o755)
	return cfg, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
