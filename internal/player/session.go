package player

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Command rejections surfaced to the caller. None of them mutate state.
var (
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrNotPlaying     = errors.New("not currently playing")
	ErrNotPaused      = errors.New("not currently paused")
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrQueueFull      = errors.New("queue is full")
	ErrVolumeRange    = errors.New("volume must be between 0 and 100")
	ErrBadLoopMode    = errors.New("loop mode must be off, track or queue")
)

// StreamResolver turns a track's source handle into something the sink can
// play. Calls are network-bound and must never run under the session mutex.
type StreamResolver interface {
	StreamURL(ctx context.Context, t *Track) (string, error)
}

// Sink is the audio output a session owns once connected. Play must not
// block for the duration of playback; it starts output and arranges for
// onFinish to be invoked exactly once from a separate goroutine when the
// track ends, errors, or is force-stopped. Pause, Resume and SetVolume must
// be non-blocking.
type Sink interface {
	Play(ctx context.Context, handle string, volume float64, onFinish func(error)) error
	Pause() error
	Resume() error
	Stop()
	SetVolume(v float64)
	Close()
}

// SinkDialer opens a sink bound to a guild voice channel.
type SinkDialer interface {
	Dial(ctx context.Context, guildID, channelID string) (Sink, error)
}

const DefaultVolume = 50 // percent

// Session owns one guild's queue, current track and playback flags, and
// drives transitions by invoking the sink. Created lazily via Manager and
// kept for the process lifetime.
type Session struct {
	guildID        string
	resolver       StreamResolver
	dialer         SinkDialer
	maxQueue       int
	resolveTimeout time.Duration

	mu        sync.Mutex
	sink      Sink
	channelID string
	queue     []Track
	current   *Track
	status    Status
	loop      LoopMode
	shuffle   bool
	volume    float64 // 0.0 .. 1.0

	// playSeq identifies the in-flight sink playback; finishedSeq records
	// the latest completion already handled. Together they make the
	// completion path idempotent: a forced stop and a natural completion
	// racing for the same track advance the queue exactly once.
	playSeq     uint64
	finishedSeq uint64

	advancing    bool
	advanceAgain bool

	// overridable in tests for deterministic shuffle
	randIntN func(n int) int
}

type SessionOpts struct {
	MaxQueueSize   int
	ResolveTimeout time.Duration
}

func NewSession(guildID string, res StreamResolver, dialer SinkDialer, opts SessionOpts) *Session {
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 10 * time.Second
	}
	return &Session{
		guildID:        guildID,
		resolver:       res,
		dialer:         dialer,
		maxQueue:       opts.MaxQueueSize,
		resolveTimeout: opts.ResolveTimeout,
		status:         StatusIdle,
		loop:           LoopOff,
		volume:         float64(DefaultVolume) / 100,
		randIntN:       rand.IntN,
	}
}

// Connect joins the given voice channel. Connecting while already on that
// channel is a no-op; connecting while on a different channel moves, which
// stops playback (the queue survives, as with Disconnect).
func (s *Session) Connect(ctx context.Context, channelID string) error {
	s.mu.Lock()
	if s.sink != nil && s.channelID == channelID {
		s.mu.Unlock()
		return nil
	}
	old := s.sink
	s.sink = nil
	s.channelID = ""
	s.invalidatePlaybackLocked()
	s.mu.Unlock()

	if old != nil {
		old.Stop()
		old.Close()
	}

	sink, err := s.dialer.Dial(ctx, s.guildID, channelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sink = sink
	s.channelID = channelID
	sink.SetVolume(s.volume)
	s.mu.Unlock()
	return nil
}

// Disconnect leaves the voice channel and clears the current track and
// playback flags. The queue survives; Stop is the operation that clears it.
func (s *Session) Disconnect() {
	s.mu.Lock()
	sink := s.sink
	s.sink = nil
	s.channelID = ""
	s.invalidatePlaybackLocked()
	s.mu.Unlock()

	if sink != nil {
		sink.Stop()
		sink.Close()
	}
}

// invalidatePlaybackLocked clears the current track and makes any in-flight
// completion callback a no-op. Caller holds s.mu.
func (s *Session) invalidatePlaybackLocked() {
	s.playSeq++
	s.finishedSeq = s.playSeq
	s.current = nil
	s.status = StatusIdle
}

// Enqueue inserts the track at position (0-based, clamped to the queue
// bounds) or appends when position is negative or past the end. It returns
// the 1-based resulting position. Duplicates are allowed.
func (s *Session) Enqueue(t Track, position int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) >= s.maxQueue {
		return 0, ErrQueueFull
	}
	if t.AddedAt.IsZero() {
		t.AddedAt = time.Now()
	}
	if position < 0 || position >= len(s.queue) {
		s.queue = append(s.queue, t)
		return len(s.queue), nil
	}
	s.queue = append(s.queue, Track{})
	copy(s.queue[position+1:], s.queue[position:])
	s.queue[position] = t
	return position + 1, nil
}

// PlayNext advances playback. While a track is playing or paused the call
// is a no-op: completion (natural or forced via Skip) is the only event
// that vacates the slot, so redundant starts can never cut a track short.
// At most one invocation runs the advance loop at a time; concurrent calls
// (command handlers racing the completion callback) are coalesced into a
// re-run of the loop rather than dropped.
func (s *Session) PlayNext(ctx context.Context) {
	s.mu.Lock()
	if s.advancing {
		s.advanceAgain = true
		s.mu.Unlock()
		return
	}
	s.advancing = true
	s.mu.Unlock()

	for {
		s.advanceOnce(ctx)

		s.mu.Lock()
		if !s.advanceAgain {
			s.advancing = false
			s.mu.Unlock()
			return
		}
		s.advanceAgain = false
		s.mu.Unlock()
	}
}

// advanceOnce runs one advance pass: pick a candidate, resolve its stream
// handle (without holding the mutex), hand it to the sink.
// Resolution failures discard the candidate and try the next queued item
// until the queue empties.
func (s *Session) advanceOnce(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.status == StatusPlaying || s.status == StatusPaused {
			// a track already owns the slot; its completion callback
			// drives the next advance
			s.mu.Unlock()
			return
		}
		next, ok := s.nextCandidateLocked()
		if !ok {
			s.current = nil
			s.status = StatusIdle
			s.mu.Unlock()
			return
		}
		cur := &next
		s.current = cur
		sink := s.sink
		vol := s.volume
		s.mu.Unlock()

		if sink == nil {
			// Promoted a track with no voice connection; undo rather than
			// ever exposing playing without a connection.
			s.mu.Lock()
			if s.current == cur {
				s.queue = append([]Track{next}, s.queue...)
				s.current = nil
				s.status = StatusIdle
			}
			s.mu.Unlock()
			slog.Warn("play requested without voice connection", "guildID", s.guildID)
			return
		}

		rctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
		handle, err := s.resolver.StreamURL(rctx, cur)
		cancel()
		if err != nil || handle == "" {
			slog.Warn("stream resolution failed, skipping track",
				"guildID", s.guildID, "title", next.Title, "err", err)
			s.mu.Lock()
			if s.current == cur {
				s.current = nil
			}
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		if s.current != cur || s.sink != sink {
			// stopped or disconnected while resolving
			s.mu.Unlock()
			return
		}
		s.playSeq++
		seq := s.playSeq
		s.mu.Unlock()

		err = sink.Play(ctx, handle, vol, func(perr error) { s.onTrackFinished(seq, perr) })

		s.mu.Lock()
		if err != nil {
			slog.Error("sink rejected playback, skipping track",
				"guildID", s.guildID, "title", next.Title, "err", err)
			if s.current == cur {
				s.current = nil
			}
			s.mu.Unlock()
			continue
		}
		if s.current == cur {
			s.status = StatusPlaying
		}
		s.mu.Unlock()
		return
	}
}

// nextCandidateLocked picks the next track as a pure function of
// (loop, shuffle, queue, current). Caller holds s.mu.
func (s *Session) nextCandidateLocked() (Track, bool) {
	if s.loop == LoopTrack && s.current != nil {
		return *s.current, true
	}
	if s.loop == LoopQueue && len(s.queue) == 0 && s.current != nil {
		s.queue = append(s.queue, *s.current)
	}
	if len(s.queue) == 0 {
		return Track{}, false
	}
	i := 0
	if s.shuffle && s.loop != LoopTrack && len(s.queue) > 1 {
		i = s.randIntN(len(s.queue))
	}
	t := s.queue[i]
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
	return t, true
}

// onTrackFinished is the sink completion callback. Loop bookkeeping happens
// before the advance: the just-finished track goes back on the queue first
// (front for track loop, back for queue loop) so PlayNext hands out the
// right one.
func (s *Session) onTrackFinished(seq uint64, err error) {
	s.mu.Lock()
	if seq != s.playSeq || s.finishedSeq >= seq {
		// stale playback or an advance already claimed by a racing
		// skip/completion; the session state was handled elsewhere
		s.mu.Unlock()
		return
	}
	s.finishedSeq = seq

	if err != nil {
		slog.Error("playback ended with error", "guildID", s.guildID, "err", err)
	}
	if s.current != nil {
		switch s.loop {
		case LoopTrack:
			s.queue = append([]Track{*s.current}, s.queue...)
		case LoopQueue:
			s.queue = append(s.queue, *s.current)
		}
	}
	s.current = nil
	s.status = StatusIdle
	s.mu.Unlock()

	s.PlayNext(context.Background())
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPlaying || s.sink == nil {
		return ErrNotPlaying
	}
	if err := s.sink.Pause(); err != nil {
		return err
	}
	s.status = StatusPaused
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPaused || s.sink == nil {
		return ErrNotPaused
	}
	if err := s.sink.Resume(); err != nil {
		return err
	}
	s.status = StatusPlaying
	return nil
}

// Skip force-stops the sink and lets its completion callback drive the next
// transition. Calling PlayNext here as well would double-advance the queue.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.current == nil || s.sink == nil {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	sink := s.sink
	s.mu.Unlock()

	sink.Stop()
	return nil
}

// Stop force-stops the sink, clears the queue and the current track. The
// sink's completion callback still fires but sees already-cleared state.
func (s *Session) Stop() {
	s.mu.Lock()
	sink := s.sink
	s.invalidatePlaybackLocked()
	s.queue = nil
	s.mu.Unlock()

	if sink != nil {
		sink.Stop()
	}
}

func (s *Session) SetLoopMode(m LoopMode) error {
	switch m {
	case LoopOff, LoopTrack, LoopQueue:
	default:
		return ErrBadLoopMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = m
	return nil
}

func (s *Session) SetShuffle(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuffle = on
}

// SetVolume takes a percentage and rejects anything outside 0-100.
func (s *Session) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return ErrVolumeRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = float64(percent) / 100
	if s.sink != nil {
		s.sink.SetVolume(s.volume)
	}
	return nil
}

// RemoveFromQueue removes count tracks starting at the 1-based position.
func (s *Session) RemoveFromQueue(position, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 1 {
		return errors.New("position must be at least 1")
	}
	if count < 1 {
		return errors.New("range must be at least 1")
	}
	begin := position - 1
	if begin >= len(s.queue) {
		return errors.New("position out of range")
	}
	end := begin + count
	if end > len(s.queue) {
		end = len(s.queue)
	}
	s.queue = append(s.queue[:begin], s.queue[end:]...)
	return nil
}

// Move relocates a queued track between 1-based positions.
func (s *Session) Move(from, to int) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from < 1 || to < 1 {
		return Track{}, errors.New("position must be at least 1")
	}
	src, dst := from-1, to-1
	if src >= len(s.queue) || dst >= len(s.queue) {
		return Track{}, errors.New("move index is outside the range of the queue")
	}
	item := s.queue[src]
	s.queue = append(s.queue[:src], s.queue[src+1:]...)
	if dst > src {
		dst--
	}
	s.queue = append(s.queue[:dst], append([]Track{item}, s.queue[dst:]...)...)
	return item, nil
}

func (s *Session) Current() *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

func (s *Session) Queue() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	cp := make([]Track, len(s.queue))
	copy(cp, s.queue)
	return cp
}

func (s *Session) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusPlaying
}

func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusPaused
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink != nil
}

func (s *Session) ChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

// Info is a point-in-time snapshot for rendering.
type Info struct {
	Current   *Track
	Queue     []Track
	Playing   bool
	Paused    bool
	LoopMode  LoopMode
	Shuffle   bool
	VolumePct int
}

func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		Playing:   s.status == StatusPlaying,
		Paused:    s.status == StatusPaused,
		LoopMode:  s.loop,
		Shuffle:   s.shuffle,
		VolumePct: int(s.volume*100 + 0.5),
	}
	if s.current != nil {
		cp := *s.current
		info.Current = &cp
	}
	if len(s.queue) > 0 {
		info.Queue = make([]Track, len(s.queue))
		copy(info.Queue, s.queue)
	}
	return info
}
