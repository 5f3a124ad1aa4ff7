package player

import "time"

// Provider identifies the platform a track was resolved from.
type Provider string

const (
	ProviderYouTube    Provider = "youtube"
	ProviderSpotify    Provider = "spotify"
	ProviderSoundCloud Provider = "soundcloud"
)

// LoopMode controls what happens when a track finishes.
type LoopMode string

const (
	LoopOff   LoopMode = "off"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

func ParseLoopMode(s string) (LoopMode, bool) {
	switch LoopMode(s) {
	case LoopOff, LoopTrack, LoopQueue:
		return LoopMode(s), true
	}
	return "", false
}

type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
)

// Track is the normalized metadata for one playable item. Immutable once
// resolved; the session copies it for loop bookkeeping.
type Track struct {
	Title     string
	Artist    string
	Album     string
	Duration  int    // seconds, 0 when unknown or live
	URL       string // opaque source handle understood by the resolver
	Thumbnail string
	Provider  Provider

	// RequestedBy is an opaque user reference owned by the command layer.
	// The session stores and surfaces it but never interprets it.
	RequestedBy string
	AddedAt     time.Time
}
