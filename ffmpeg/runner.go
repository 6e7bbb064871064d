package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ytmp3/config"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type Runner struct {
	cfg       *config.Config
	extraArgs []string
}

func NewRunner(cfg *config.Config) (*Runner, error) {
	// Ensure ffmpeg binary is executable
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}

	extraArgs, err := SplitArgs(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
	}
	if err := ValidateArgs(extraArgs); err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		extraArgs: extraArgs,
	}, nil
}

// Transcode pipes raw audio from in through ffmpeg into an MP3 at outputPath.
// Each time= marker on stderr is reported through onProgress as elapsed whole
// seconds. When ctx is canceled the process is killed and ctx.Err() is
// returned, so callers can tell a deliberate kill from an ffmpeg failure.
func (r *Runner) Transcode(ctx context.Context, in io.Reader, bitrate int, outputPath string, onProgress func(elapsedSeconds int)) error {
	// 1. Check system resources before starting
	if err := r.checkResources(filepath.Dir(outputPath)); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}

	// 2. Prepare command
	args := []string{"-hide_banner", "-y", "-i", "pipe:0", "-vn", "-b:a", fmt.Sprintf("%dk", bitrate)}
	args = append(args, r.extraArgs...)
	args = append(args, "-f", "mp3", outputPath)

	cmd := exec.CommandContext(ctx, r.cfg.FFBin, args...)
	cmd.Stdin = in
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	log.Printf("Executing: %s %s", cmd.Path, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	// Stderr must be drained before Wait.
	tail := scanProgress(stderr, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			// Killed through the conversion's cancellation handle, or timed out.
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, tail)
	}
	return nil
}

// scanProgress reads ffmpeg's stderr to completion. Status lines carrying a
// time= marker are reported through onProgress; everything else feeds a short
// tail kept for error reporting.
func scanProgress(r io.Reader, onProgress func(int)) string {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanStatusLines)

	var tail []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if mark, ok := timemarkField(line); ok {
			if secs, err := ParseTimemark(mark); err == nil && onProgress != nil {
				onProgress(secs)
			}
			continue
		}
		tail = append(tail, line)
		if len(tail) > 8 {
			tail = tail[1:]
		}
	}
	return strings.Join(tail, "; ")
}

// ffmpeg rewrites its status line in place with carriage returns, so treat \r
// as a line break alongside \n.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func timemarkField(line string) (string, bool) {
	for _, field := range strings.Fields(line) {
		if mark, ok := strings.CutPrefix(field, "time="); ok {
			return mark, true
		}
	}
	return "", false
}

// checkResources verifies that the system has enough free resources to start a new job.
func (r *Runner) checkResources(outputDir string) error {
	// CPU
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Printf("Warning: could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-r.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], r.cfg.ThrottleCPU)
	}

	// Memory
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Warning: could not get memory usage: %v", err)
	} else if vm.Available < uint64(r.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, r.cfg.ThrottleFreeMem)
	}

	// Disk
	d, err := disk.Usage(outputDir)
	if err != nil {
		log.Printf("Warning: could not get disk usage for %s: %v", outputDir, err)
	} else if d.Free < uint64(r.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, r.cfg.ThrottleFreeDisk)
	}
	return nil
}
