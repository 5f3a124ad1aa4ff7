// Package voice is the audio output path: it joins a guild voice channel,
// decodes the resolved stream to PCM, applies gain, encodes 20 ms libopus
// packets and paces them into the discordgo voice connection.
package voice

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tonearm/tonearm/internal/player"
)

// Dialer joins voice channels on behalf of player sessions.
type Dialer struct {
	session *discordgo.Session
}

func NewDialer(s *discordgo.Session) *Dialer {
	return &Dialer{session: s}
}

func (d *Dialer) Dial(ctx context.Context, guildID, channelID string) (player.Sink, error) {
	vc, err := d.session.ChannelVoiceJoin(ctx, guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	return &Conn{vc: vc, guildID: guildID}, nil
}

// Conn is one joined voice channel. It satisfies player.Sink: Play starts a
// background pipeline and the completion callback fires exactly once from
// that pipeline's goroutine.
type Conn struct {
	vc      *discordgo.VoiceConnection
	guildID string

	volume atomic.Uint64 // float64 bits, 0.0 .. 1.0
	paused atomic.Bool

	mu         sync.Mutex
	playCancel context.CancelFunc
	closed     bool
}

func (c *Conn) SetVolume(v float64) {
	c.volume.Store(math.Float64bits(v))
}

func (c *Conn) gain() float64 {
	return math.Float64frombits(c.volume.Load())
}

func (c *Conn) Pause() error {
	c.paused.Store(true)
	_ = c.vc.Speaking(false)
	return nil
}

func (c *Conn) Resume() error {
	c.paused.Store(false)
	_ = c.vc.Speaking(true)
	return nil
}

// Stop cancels the in-flight playback, if any. The pipeline goroutine still
// delivers its completion callback.
func (c *Conn) Stop() {
	c.mu.Lock()
	cancel := c.playCancel
	c.playCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Conn) Close() {
	c.Stop()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	_ = c.vc.Speaking(false)
	_ = c.vc.Disconnect(context.Background())
}

func (c *Conn) Play(ctx context.Context, handle string, volume float64, onFinish func(error)) error {
	c.SetVolume(volume)
	c.paused.Store(false)

	stream, err := startPCM(context.WithoutCancel(ctx), handle)
	if err != nil {
		return err
	}
	enc, err := newEncoder()
	if err != nil {
		stream.Close()
		return err
	}

	pctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if old := c.playCancel; old != nil {
		old()
	}
	c.playCancel = cancel
	c.mu.Unlock()

	var once sync.Once
	finish := func(err error) {
		once.Do(func() { onFinish(err) })
	}

	go c.sendLoop(pctx, stream, enc, finish)
	return nil
}

func (c *Conn) sendLoop(ctx context.Context, stream *pcmStream, enc *encoder, finish func(error)) {
	defer func() {
		stream.Close()
		enc.close()
	}()

	_ = c.vc.Speaking(true)
	defer c.vc.Speaking(false)

	r := bufio.NewReaderSize(stream.Reader(), 128*1024)
	frame := make([]byte, enc.frameBytes())
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			// force-stopped; a forced stop is a normal completion
			finish(nil)
			return
		}
		if c.paused.Load() {
			select {
			case <-ctx.Done():
				finish(nil)
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		n, err := io.ReadFull(r, frame)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) && n > 0 {
				// pad the final short frame with silence
				for i := n; i < len(frame); i++ {
					frame[i] = 0
				}
				applyGain(frame, c.gain())
				_ = c.emitFrame(ctx, enc, frame, ticker)
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				finish(nil)
			} else if errors.Is(err, context.Canceled) {
				finish(nil)
			} else {
				slog.Error("pcm read failed", "guildID", c.guildID, "err", err)
				finish(err)
			}
			return
		}

		applyGain(frame, c.gain())
		if err := c.emitFrame(ctx, enc, frame, ticker); err != nil {
			if ctx.Err() != nil {
				finish(nil)
			} else {
				finish(err)
			}
			return
		}
	}
}

// emitFrame encodes one PCM frame and sends the resulting packets, pacing on
// the 20 ms ticker.
func (c *Conn) emitFrame(ctx context.Context, enc *encoder, pcm []byte, ticker *time.Ticker) error {
	return enc.encodeFrame(pcm, func(pkt []byte) error {
		out := make([]byte, len(pkt))
		copy(out, pkt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.vc.OpusSend <- out:
			return nil
		case <-time.After(200 * time.Millisecond):
			// voice gateway is stalled; drop rather than block playback
			return nil
		}
	})
}

// applyGain scales interleaved s16le samples in place with clipping.
func applyGain(frame []byte, gain float64) {
	if gain >= 0.999 && gain <= 1.001 {
		return
	}
	for i := 0; i+1 < len(frame); i += 2 {
		v := float64(int16(uint16(frame[i]) | uint16(frame[i+1])<<8))
		v *= gain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		s := int16(v)
		frame[i] = byte(uint16(s))
		frame[i+1] = byte(uint16(s) >> 8)
	}
}
