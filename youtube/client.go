// ytmp3/youtube/client.go
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	yt "github.com/kkdai/youtube/v2"
)

// ErrNotFound is returned when a video id cannot be resolved, whatever the
// underlying reason (unknown id, removed video, restricted access).
var ErrNotFound = errors.New("video not found")

// ErrStreamTooLarge is returned by the audio stream once more bytes than the
// configured input cap have been read.
var ErrStreamTooLarge = errors.New("audio stream exceeds input size limit")

// VideoInfo is the metadata the conversion pipeline needs from a lookup.
type VideoInfo struct {
	ID            string
	Title         string
	LengthSeconds int
}

// ExtractVideoID pulls the 11-character video id out of a YouTube URL. A bare
// id passes through unchanged.
func ExtractVideoID(url string) (string, error) {
	return yt.ExtractVideoID(url)
}

type Client struct {
	yt       yt.Client
	maxBytes int64
}

// NewClient builds a lookup/stream client. maxBytes caps how much raw audio a
// single conversion may pull; zero or negative disables the cap.
func NewClient(maxBytes int64) *Client {
	return &Client{maxBytes: maxBytes}
}

// FetchInfo resolves a video id into its metadata.
func (c *Client) FetchInfo(ctx context.Context, videoID string) (VideoInfo, error) {
	v, err := c.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		log.Printf("Video lookup for %s failed: %v", videoID, err)
		return VideoInfo{}, fmt.Errorf("lookup %s: %w", videoID, ErrNotFound)
	}
	return VideoInfo{
		ID:            v.ID,
		Title:         v.Title,
		LengthSeconds: int(v.Duration.Seconds()),
	}, nil
}

// OpenAudioStream opens the highest-bitrate audio-only stream for a video.
func (c *Client) OpenAudioStream(ctx context.Context, videoID string) (io.ReadCloser, error) {
	v, err := c.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", videoID, ErrNotFound)
	}

	format := bestAudioFormat(v.Formats)
	if format == nil {
		return nil, fmt.Errorf("no audio-only format available for %s", videoID)
	}

	stream, _, err := c.yt.GetStreamContext(ctx, v, format)
	if err != nil {
		return nil, fmt.Errorf("open audio stream for %s: %w", videoID, err)
	}
	if c.maxBytes <= 0 {
		return stream, nil
	}
	return &cappedReader{rc: stream, remaining: c.maxBytes}, nil
}

// bestAudioFormat picks the audio-only format with the highest bitrate.
func bestAudioFormat(formats yt.FormatList) *yt.Format {
	var best *yt.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

// cappedReader fails the stream instead of truncating it when the cap is hit,
// so an oversized source surfaces as a conversion failure rather than a
// silently shortened file.
type cappedReader struct {
	rc        io.ReadCloser
	remaining int64
}

func (r *cappedReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, ErrStreamTooLarge
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.rc.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *cappedReader) Close() error {
	return r.rc.Close()
}
