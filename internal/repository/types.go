package repository

import "database/sql"

type Repo struct {
	db *sql.DB
}

type Settings struct {
	GuildID       string
	DefaultVolume int
	QueuePageSize int
	PlaylistLimit int
}

type Playlist struct {
	ID        int64
	GuildID   string
	OwnerID   string
	Name      string
	CreatedAt int64 // unix seconds
}

type PlaylistTrack struct {
	ID        int64
	Title     string
	Artist    string
	URL       string
	Duration  int
	Thumbnail string
	Provider  string
	Position  int
}
