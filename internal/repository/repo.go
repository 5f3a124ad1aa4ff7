package repository

import (
	"context"
	"database/sql"
	"time"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	_, _ = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guild,
	)
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, default_volume, queue_page_size, playlist_limit
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	if err := row.Scan(&s.GuildID, &s.DefaultVolume, &s.QueuePageSize, &s.PlaylistLimit); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  default_volume=?,
		  queue_page_size=?,
		  playlist_limit=?
		WHERE guild_id=?`,
		s.DefaultVolume, s.QueuePageSize, s.PlaylistLimit, s.GuildID,
	)
	return err
}

// CreatePlaylist inserts the playlist if it does not exist and reports
// whether a row was created.
func (r *Repo) CreatePlaylist(ctx context.Context, guild, owner, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlists(guild_id, owner_id, name, created_at) VALUES (?,?,?,?)`,
		guild, owner, name, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) FindPlaylist(ctx context.Context, guild, owner, name string) (*Playlist, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, guild_id, owner_id, name, created_at FROM playlists
		 WHERE guild_id=? AND owner_id=? AND name=?`, guild, owner, name)
	var p Playlist
	if err := row.Scan(&p.ID, &p.GuildID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListPlaylists(ctx context.Context, guild, owner string) ([]Playlist, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guild_id, owner_id, name, created_at FROM playlists
		 WHERE guild_id=? AND owner_id=? ORDER BY created_at ASC, id ASC`, guild, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.ID, &p.GuildID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) DeletePlaylist(ctx context.Context, guild, owner, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM playlists WHERE guild_id=? AND owner_id=? AND name=?`, guild, owner, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AppendPlaylistTrack adds the track at the playlist tail unless the playlist
// already holds limit tracks. It reports whether the track was added.
func (r *Repo) AppendPlaylistTrack(ctx context.Context, playlistID int64, t *PlaylistTrack, limit int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var count int
	row := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id=?`, playlistID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	if limit > 0 && count >= limit {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlist_tracks(playlist_id, title, artist, url, duration, thumbnail, provider, position)
		VALUES (?,?,?,?,?,?,?,?)`,
		playlistID, t.Title, t.Artist, t.URL, t.Duration, t.Thumbnail, t.Provider, count,
	)
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *Repo) ListPlaylistTracks(ctx context.Context, playlistID int64) ([]PlaylistTrack, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, artist, url, duration, thumbnail, provider, position
		FROM playlist_tracks WHERE playlist_id=? ORDER BY position ASC, id ASC`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PlaylistTrack
	for rows.Next() {
		var t PlaylistTrack
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.URL, &t.Duration, &t.Thumbnail, &t.Provider, &t.Position); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) CountPlaylistTracks(ctx context.Context, playlistID int64) (int, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id=?`, playlistID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) RemovePlaylistTrack(ctx context.Context, playlistID int64, position int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM playlist_tracks WHERE playlist_id=? AND position=?`, playlistID, position)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_, err = r.db.ExecContext(ctx,
			`UPDATE playlist_tracks SET position=position-1 WHERE playlist_id=? AND position>?`,
			playlistID, position)
	}
	return n, err
}
