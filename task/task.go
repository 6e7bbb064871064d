package task

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"ytmp3/youtube"
)

type Status string

const (
	StatusUnstarted Status = "unstarted"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCanceled || s == StatusFailed
}

// Source resolves video ids and supplies raw audio-only streams.
type Source interface {
	FetchInfo(ctx context.Context, videoID string) (youtube.VideoInfo, error)
	OpenAudioStream(ctx context.Context, videoID string) (io.ReadCloser, error)
}

// Transcoder consumes a raw audio stream and writes a bounded MP3, reporting
// elapsed source seconds along the way. A kill through ctx must surface as
// ctx.Err(), not as a generic failure.
type Transcoder interface {
	Transcode(ctx context.Context, in io.Reader, bitrate int, outputPath string, onProgress func(elapsedSeconds int)) error
}

// Outcome is the single terminal result of a task that reached Running.
type Outcome struct {
	Status Status // StatusFinished, StatusCanceled or StatusFailed
	Err    error  // cause, set only for StatusFailed
}

// Task converts one video at one bitrate into a size-bounded MP3.
//
// Lifecycle: unstarted → running → exactly one of finished/canceled/failed.
// Progress percentages stream over Progress() until it is closed; the terminal
// Outcome is then delivered on Done(), once, and Done() is closed. The
// cancellation token is created together with the task, so a Cancel that lands
// while the stream or process is still being set up takes effect as soon as
// the ctx is next consulted — there is no window where a cancel is dropped.
type Task struct {
	ID      string
	Bitrate int
	Info    youtube.VideoInfo

	basePath string
	source   Source
	coder    Transcoder

	mu     sync.Mutex
	status Status

	ctx    context.Context
	cancel context.CancelFunc

	progress chan int
	done     chan Outcome
}

// Dir is the per-video-and-bitrate directory this task exclusively owns.
func (t *Task) Dir() string {
	return filepath.Join(t.basePath, t.ID, strconv.Itoa(t.Bitrate))
}

// AudioPath is the deterministic output location for (video, bitrate).
func (t *Task) AudioPath() string {
	return filepath.Join(t.Dir(), "audio.mp3")
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress streams computed percentages while the task runs. The channel is
// lossy: when the consumer lags, intermediate percentages are dropped rather
// than blocking the conversion. It is closed before the Outcome is delivered.
func (t *Task) Progress() <-chan int {
	return t.progress
}

// Done delivers the terminal Outcome exactly once and is then closed.
func (t *Task) Done() <-chan Outcome {
	return t.done
}

// Start transitions the task to Running and converts in the background. On a
// task that is not Unstarted it logs a warning and does nothing.
func (t *Task) Start() {
	t.mu.Lock()
	if t.status != StatusUnstarted {
		t.mu.Unlock()
		log.Printf("Task %s: Start ignored, status is %s", t.ID, t.status)
		return
	}
	t.status = StatusRunning
	t.mu.Unlock()

	go t.run()
}

// Cancel kills the running conversion through the task's cancellation token.
// It is a no-op on a task that is not Running; the task only becomes Canceled
// once the conversion actually terminates.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusRunning {
		return
	}
	t.cancel()
}

func (t *Task) run() {
	err := t.convert(t.ctx)

	var out Outcome
	switch {
	case err == nil:
		out = Outcome{Status: StatusFinished}
	case errors.Is(err, context.DeadlineExceeded):
		// Hitting the conversion timeout is a failure, not a user cancel.
		os.RemoveAll(t.Dir())
		out = Outcome{Status: StatusFailed, Err: err}
	case errors.Is(err, context.Canceled) || t.ctx.Err() == context.Canceled:
		os.RemoveAll(t.Dir())
		out = Outcome{Status: StatusCanceled}
	default:
		os.RemoveAll(t.Dir())
		out = Outcome{Status: StatusFailed, Err: err}
	}

	t.mu.Lock()
	t.status = out.Status
	t.mu.Unlock()

	close(t.progress)
	t.done <- out
	close(t.done)
	t.cancel()
}

func (t *Task) convert(ctx context.Context) error {
	if err := os.MkdirAll(t.Dir(), 0o755); err != nil {
		return err
	}

	// An existing output means an earlier task already produced this exact
	// (video, bitrate) file; reuse it instead of transcoding again.
	if exists(t.AudioPath()) {
		log.Printf("Task %s: output already exists, reusing %s", t.ID, t.AudioPath())
		return nil
	}

	stream, err := t.source.OpenAudioStream(ctx, t.ID)
	if err != nil {
		return err
	}
	defer stream.Close()

	return t.coder.Transcode(ctx, stream, t.Bitrate, t.AudioPath(), t.report)
}

func (t *Task) report(elapsedSeconds int) {
	select {
	case t.progress <- Percent(elapsedSeconds, t.Info.LengthSeconds):
	default:
	}
}

// Percent computes floor(elapsed*100/length). A zero or unknown length clamps
// to 100 so no garbage reaches a user-visible percentage.
func Percent(elapsedSeconds, lengthSeconds int) int {
	if lengthSeconds <= 0 {
		return 100
	}
	return elapsedSeconds * 100 / lengthSeconds
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
