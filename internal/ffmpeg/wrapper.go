// Package ffmpeg provides a wrapper around the FFmpeg and ffprobe binaries
// for clip extraction, still capture, and media inspection.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Command represents a built FFmpeg invocation.
type Command struct {
	Binary string
	Args   []string
	Input  string
	Output string

	mu      sync.RWMutex
	cmd     *exec.Cmd
	started time.Time

	stderrMu    sync.RWMutex
	stderrLines []string
}

// CommandBuilder builds FFmpeg command lines with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a new FFmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// InputArgs adds arguments that apply to the input (placed before -i).
// Seeking with -ss belongs here so FFmpeg can use fast keyframe seek.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// SeekTo seeks the input to the given position in seconds.
func (b *CommandBuilder) SeekTo(seconds float64) *CommandBuilder {
	return b.InputArgs("-ss", formatSeconds(seconds))
}

// Input sets the input file or URL.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// Duration limits the output duration in seconds (placed after -i).
func (b *CommandBuilder) Duration(seconds float64) *CommandBuilder {
	return b.OutputArgs("-t", formatSeconds(seconds))
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// VideoPreset sets the encoder preset.
func (b *CommandBuilder) VideoPreset(preset string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-preset", preset)
	return b
}

// CRF sets the constant rate factor.
func (b *CommandBuilder) CRF(crf int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-crf", strconv.Itoa(crf))
	return b
}

// PixelFormat sets the output pixel format.
func (b *CommandBuilder) PixelFormat(format string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-pix_fmt", format)
	return b
}

// Qscale sets the quality scale for image outputs (lower is better).
func (b *CommandBuilder) Qscale(q int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-q:v", strconv.Itoa(q))
	return b
}

// Frames limits the number of output video frames.
func (b *CommandBuilder) Frames(n int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-frames:v", strconv.Itoa(n))
	return b
}

// VideoFilter adds a video filter. Multiple filters are joined into a chain.
func (b *CommandBuilder) VideoFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// Scale adds a scale filter for the given dimensions.
func (b *CommandBuilder) Scale(width, height int) *CommandBuilder {
	return b.VideoFilter(fmt.Sprintf("scale=%d:%d", width, height))
}

// StripMetadata removes container metadata from the output.
func (b *CommandBuilder) StripMetadata() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-map_metadata", "-1")
	return b
}

// OutputArgs adds raw output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output file.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build assembles the argument list into a runnable Command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	// Global args (loglevel, banner, etc.)
	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)

	// Overwrite
	if b.overwrite {
		args = append(args, "-y")
	}

	// Input args
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)

	// Video filter chain
	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}

	// Output args
	args = append(args, b.outputArgs...)

	// Output
	args = append(args, b.output)

	return &Command{
		Binary:      b.binary,
		Args:        args,
		Input:       b.input,
		Output:      b.output,
		stderrLines: make([]string, 0, maxStderrLines),
	}
}

// String returns the command as a string.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Run executes the command and waits for completion. Stderr is captured to
// a bounded in-memory buffer; on failure the most recent lines are included
// in the returned error.
func (c *Command) Run(ctx context.Context) error {
	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()
	cmd := c.cmd
	c.mu.Unlock()

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attaching stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	done := make(chan struct{})
	go c.captureStderr(stderr, done)

	waitErr := cmd.Wait()
	<-done

	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tail := c.stderrTail(5); tail != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, tail)
		}
		return fmt.Errorf("ffmpeg failed: %w", waitErr)
	}
	return nil
}

// Kill terminates the FFmpeg process.
func (c *Command) Kill() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Elapsed returns how long the command has been running.
func (c *Command) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// maxStderrLines bounds the in-memory stderr ring buffer.
const maxStderrLines = 100

func (c *Command) captureStderr(stderr io.ReadCloser, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		c.stderrMu.Lock()
		if len(c.stderrLines) >= maxStderrLines {
			c.stderrLines = c.stderrLines[1:] // Remove oldest
		}
		c.stderrLines = append(c.stderrLines, line)
		c.stderrMu.Unlock()
	}
}

// StderrLines returns the recent stderr lines captured from FFmpeg.
func (c *Command) StderrLines() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// stderrTail joins the last n captured stderr lines.
func (c *Command) stderrTail(n int) string {
	lines := c.StderrLines()
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}

// formatSeconds renders a seconds value the way FFmpeg expects.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
