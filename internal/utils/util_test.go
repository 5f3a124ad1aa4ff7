package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMd(t *testing.T) {
	assert.Equal(t, "a\\*b\\_c\\`d\\~e", EscapeMd("a*b_c`d~e"))
	assert.Equal(t, "plain", EscapeMd("plain"))
}

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrettyTime(tt.sec))
	}
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"90", 90},
		{"1m30s", 90},
		{"2h", 7200},
		{"1h2m3s", 3723},
		{"nonsense", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDurationString(tt.in), "input %q", tt.in)
	}
}

func TestBuildFFmpegHeaders(t *testing.T) {
	out := BuildFFmpegHeaders(map[string]string{"Referer": "https://example.com/"})
	assert.Contains(t, out, "Referer: https://example.com/\r\n")
	assert.Contains(t, out, "User-Agent: ")
	assert.True(t, strings.HasSuffix(out, "\r\n"))
}

func TestShuffleSliceKeepsElements(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	got := make([]int, len(in))
	copy(got, in)

	ShuffleSlice(got)
	assert.ElementsMatch(t, in, got)

	single := []string{"only"}
	ShuffleSlice(single)
	assert.Equal(t, []string{"only"}, single)
}
