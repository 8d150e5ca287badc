// Package rubberband provides a pitchshift.Shifter backed by the Rubber Band
// command-line utility, a phase-vocoder pitch shifter that preserves duration.
//
// Each Shift call round-trips through temporary WAV files: the clip is
// written to disk, the binary is invoked with a frequency ratio, and the
// resulting WAV is decoded back into memory. The binary is external state, so
// construction verifies it exists on PATH up front rather than failing on the
// first segment of a job.
package rubberband

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/provider/pitchshift"
)

// Compile-time interface assertion.
var _ pitchshift.Shifter = (*Shifter)(nil)

const defaultTimeout = 30 * time.Second

// Option is a functional option for configuring a Shifter.
type Option func(*Shifter)

// WithTimeout bounds a single CLI invocation. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Shifter) { s.timeout = d }
}

// WithExtraArgs appends additional CLI flags before the input/output paths,
// e.g. "--fine" for the R3 engine's higher-quality mode.
func WithExtraArgs(args ...string) Option {
	return func(s *Shifter) { s.extraArgs = args }
}

// Shifter shells out to the rubberband binary. It serialises invocations: the
// CLI is cheap to run but the shifter is typically shared by a worker pool
// whose segments arrive faster than disk round-trips complete, and bounding
// concurrent subprocesses at one keeps memory behaviour predictable.
type Shifter struct {
	binPath   string
	timeout   time.Duration
	extraArgs []string

	mu sync.Mutex
}

// New locates command on PATH (or verifies an absolute path) and returns a
// ready Shifter. command may include flags, e.g. "rubberband --fine".
func New(command string, opts ...Option) (*Shifter, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("rubberband: empty command")
	}
	binPath, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("rubberband: binary not found: %w", err)
	}
	s := &Shifter{
		binPath:   binPath,
		timeout:   defaultTimeout,
		extraArgs: fields[1:],
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Shift transposes clip by factor via the CLI. A factor of 1.0 short-circuits
// to a copy without spawning a process.
func (s *Shifter) Shift(ctx context.Context, clip audio.Clip, factor float64) (audio.Clip, error) {
	if factor <= 0 {
		return audio.Clip{}, fmt.Errorf("rubberband: non-positive pitch factor %v", factor)
	}
	if factor == 1.0 {
		return clip.Clone(), nil
	}
	if err := clip.Validate(); err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := os.MkdirTemp("", "rubberband-*")
	if err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")

	f, err := os.Create(inPath)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: create input: %w", err)
	}
	if err := audio.EncodeWAV(f, clip); err != nil {
		f.Close()
		return audio.Clip{}, fmt.Errorf("rubberband: encode input: %w", err)
	}
	if err := f.Close(); err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: close input: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append([]string{}, s.extraArgs...)
	args = append(args, "--frequency", strconv.FormatFloat(factor, 'f', 6, 64), inPath, outPath)

	cmd := exec.CommandContext(runCtx, s.binPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: %s: %w (output: %s)",
			filepath.Base(s.binPath), err, strings.TrimSpace(string(out)))
	}

	of, err := os.Open(outPath)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: open output: %w", err)
	}
	defer of.Close()

	shifted, err := audio.DecodeWAV(of)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("rubberband: decode output: %w", err)
	}
	if err := pitchshift.CheckDuration(clip, shifted); err != nil {
		return audio.Clip{}, err
	}
	return shifted, nil
}
