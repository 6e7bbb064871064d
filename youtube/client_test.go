// ytmp3/youtube/client_test.go
package youtube

import (
	"errors"
	"io"
	"strings"
	"testing"

	yt "github.com/kkdai/youtube/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, c := range cases {
		got, err := ExtractVideoID(c.url)
		require.NoError(t, err, c.url)
		assert.Equal(t, c.want, got, c.url)
	}

	_, err := ExtractVideoID("not a video link")
	assert.Error(t, err)
}

func TestBestAudioFormat(t *testing.T) {
	t.Run("prefers the highest audio bitrate", func(t *testing.T) {
		formats := yt.FormatList{
			{MimeType: `video/mp4; codecs="avc1"`, Bitrate: 900000},
			{MimeType: `audio/webm; codecs="opus"`, Bitrate: 64000},
			{MimeType: `audio/mp4; codecs="mp4a"`, Bitrate: 128000},
		}
		best := bestAudioFormat(formats)
		require.NotNil(t, best)
		assert.Equal(t, 128000, best.Bitrate)
	})

	t.Run("returns nil when no audio-only format exists", func(t *testing.T) {
		formats := yt.FormatList{
			{MimeType: `video/mp4; codecs="avc1"`, Bitrate: 900000},
		}
		assert.Nil(t, bestAudioFormat(formats))
	})
}

func TestCappedReader(t *testing.T) {
	t.Run("passes through a stream under the cap", func(t *testing.T) {
		r := &cappedReader{rc: io.NopCloser(strings.NewReader("abcdef")), remaining: 100}
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "abcdef", string(data))
	})

	t.Run("fails once the cap is exhausted", func(t *testing.T) {
		r := &cappedReader{rc: io.NopCloser(strings.NewReader("abcdef")), remaining: 3}
		buf := make([]byte, 10)

		n, err := r.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		_, err = r.Read(buf)
		assert.True(t, errors.Is(err, ErrStreamTooLarge))
	})
}
