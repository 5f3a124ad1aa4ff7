package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/handlers"
	"github.com/tonearm/tonearm/internal/playlist"
	"github.com/tonearm/tonearm/internal/repository"
	"github.com/tonearm/tonearm/internal/resolver"
	"github.com/tonearm/tonearm/internal/spotify"
	"github.com/tonearm/tonearm/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	repo := repository.NewRepo(db)

	var sp *spotify.Client
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		sp, err = spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			slog.Warn("spotify disabled", "err", err)
			sp = nil
		}
	}

	res := resolver.New(sp, cfg.MaxPlaylistSize)
	playlists := playlist.NewRegistry(repo, cfg.MaxPlaylistSize)

	lib, err := web.NewLibrary(cfg.MusicDir, time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer lib.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := web.NewServer(web.NewJobManager(res, cfg.MusicDir), lib)
	httpSrv := &http.Server{Addr: cfg.WebAddr, Handler: srv.Router()}
	go func() {
		slog.Info("web ui listening", "addr", cfg.WebAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("web server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		if err := httpSrv.Shutdown(shCtx); err != nil {
			slog.Warn("web server shutdown", "err", err)
		}
	}()

	bot := handlers.NewBot(cfg, repo, playlists, res, sp)
	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
