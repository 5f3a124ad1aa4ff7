package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/tonearm/tonearm/internal/utils"
)

// pcmStream decodes a remote or local audio source to interleaved s16le
// stereo 48 kHz PCM, delivered through an io.Pipe.
type pcmStream struct {
	fc          *astiav.FormatContext
	audioStream *astiav.Stream
	decCtx      *astiav.CodecContext
	swr         *astiav.SoftwareResampleContext
	srcFrame    *astiav.Frame
	dstFrame    *astiav.Frame

	cancel context.CancelFunc
	pr     *io.PipeReader
	pw     *io.PipeWriter

	closeOnce sync.Once
}

// startPCM opens inputURL and begins decoding in the background.
func startPCM(ctx context.Context, inputURL string) (*pcmStream, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	_ = dict.Set("reconnect", "1", 0)
	_ = dict.Set("reconnect_streamed", "1", 0)
	_ = dict.Set("reconnect_delay_max", "5", 0)
	_ = dict.Set("headers", utils.BuildFFmpegHeaders(nil), 0)

	if err := fc.OpenInput(inputURL, nil, dict); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil || codec == nil {
		fc.CloseInput()
		fc.Free()
		if err != nil {
			return nil, fmt.Errorf("find best audio stream: %w", err)
		}
		return nil, errors.New("no audio stream found")
	}

	decCtx := astiav.AllocCodecContext(codec)
	if decCtx == nil {
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc codec context")
	}
	if err := decCtx.FromCodecParameters(st.CodecParameters()); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	decCtx.SetTimeBase(st.TimeBase())
	if err := decCtx.Open(codec, nil); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc swr")
	}

	srcFrame := astiav.AllocFrame()
	dstFrame := astiav.AllocFrame()
	if srcFrame == nil || dstFrame == nil {
		if srcFrame != nil {
			srcFrame.Free()
		}
		if dstFrame != nil {
			dstFrame.Free()
		}
		swr.Free()
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc frames")
	}

	pr, pw := io.Pipe()
	ctx2, cancel := context.WithCancel(ctx)
	ps := &pcmStream{
		fc:          fc,
		audioStream: st,
		decCtx:      decCtx,
		swr:         swr,
		srcFrame:    srcFrame,
		dstFrame:    dstFrame,
		cancel:      cancel,
		pr:          pr,
		pw:          pw,
	}

	go ps.run(ctx2)
	return ps, nil
}

func (s *pcmStream) Reader() io.Reader { return s.pr }

func (s *pcmStream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.pr.Close()
		s.srcFrame.Free()
		s.dstFrame.Free()
		s.swr.Free()
		s.decCtx.Free()
		s.fc.CloseInput()
		s.fc.Free()
	})
}

func (s *pcmStream) run(ctx context.Context) {
	packet := astiav.AllocPacket()
	defer packet.Free()
	defer s.pw.Close()

	for {
		select {
		case <-ctx.Done():
			s.pw.CloseWithError(ctx.Err())
			return
		default:
		}

		packet.Unref()
		if err := s.fc.ReadFrame(packet); err != nil {
			if astErr, ok := err.(astiav.Error); ok && astErr.Is(astiav.ErrEof) {
				s.drainDecoder()
				return
			}
			if astErr, ok := err.(astiav.Error); ok && astErr.Is(astiav.ErrEagain) {
				continue
			}
			s.pw.CloseWithError(fmt.Errorf("read frame: %w", err))
			return
		}
		if packet.StreamIndex() != s.audioStream.Index() {
			continue
		}

		if err := s.decCtx.SendPacket(packet); err != nil {
			if astErr, ok := err.(astiav.Error); !ok || !astErr.Is(astiav.ErrEagain) {
				s.pw.CloseWithError(fmt.Errorf("send packet: %w", err))
				return
			}
		}
		if err := s.receiveFrames(); err != nil {
			s.pw.CloseWithError(err)
			return
		}
	}
}

func (s *pcmStream) drainDecoder() {
	_ = s.decCtx.SendPacket(nil)
	_ = s.receiveFrames()
}

func (s *pcmStream) receiveFrames() error {
	for {
		s.srcFrame.Unref()
		if err := s.decCtx.ReceiveFrame(s.srcFrame); err != nil {
			if astErr, ok := err.(astiav.Error); ok && (astErr.Is(astiav.ErrEagain) || astErr.Is(astiav.ErrEof)) {
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if err := s.convertAndWrite(s.srcFrame); err != nil {
			return err
		}
	}
}

func (s *pcmStream) convertAndWrite(src *astiav.Frame) error {
	s.dstFrame.Unref()
	s.dstFrame.SetNbSamples(src.NbSamples())
	s.dstFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	s.dstFrame.SetSampleRate(sampleRate)
	s.dstFrame.SetSampleFormat(astiav.SampleFormatS16)
	if err := s.dstFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("dst alloc buffer: %w", err)
	}
	if err := s.swr.ConvertFrame(src, s.dstFrame); err != nil {
		return fmt.Errorf("swr convert: %w", err)
	}
	b, err := s.dstFrame.Data().Bytes(0)
	if err != nil {
		return fmt.Errorf("dst bytes: %w", err)
	}
	_, err = s.pw.Write(b)
	return err
}
