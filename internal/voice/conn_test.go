package voice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcmFrame(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func samplesOf(frame []byte) []int16 {
	out := make([]int16, len(frame)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(frame[i*2:]))
	}
	return out
}

func TestApplyGainScales(t *testing.T) {
	frame := pcmFrame(1000, -1000, 0, 20000)
	applyGain(frame, 0.5)
	assert.Equal(t, []int16{500, -500, 0, 10000}, samplesOf(frame))
}

func TestApplyGainUnityIsNoop(t *testing.T) {
	frame := pcmFrame(1234, -4321)
	applyGain(frame, 1.0)
	assert.Equal(t, []int16{1234, -4321}, samplesOf(frame))
}

func TestApplyGainClips(t *testing.T) {
	frame := pcmFrame(30000, -30000)
	applyGain(frame, 2.0)
	assert.Equal(t, []int16{32767, -32768}, samplesOf(frame))
}

func TestApplyGainSilence(t *testing.T) {
	frame := pcmFrame(12000, -7000)
	applyGain(frame, 0)
	assert.Equal(t, []int16{0, 0}, samplesOf(frame))
}
