package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/handiism/playlist-sync/internal/model"
)

// ErrUnsupportedConversion is returned for a source/target pair the
// transcoder cannot handle.
var ErrUnsupportedConversion = errors.New("unsupported conversion")

// conversions lists the supported source -> target pairs.
var conversions = map[model.Format][]model.Format{
	model.FormatM4A:  {model.FormatMP3},
	model.FormatWebM: {model.FormatMP3, model.FormatM4A},
	model.FormatMP3:  {model.FormatM4A},
}

// SupportsConversion reports whether from can be transcoded into to.
func SupportsConversion(from, to model.Format) bool {
	for _, f := range conversions[from] {
		if f == to {
			return true
		}
	}
	return false
}

// CommandLog captures one external command invocation.
type CommandLog struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

// ConversionError describes a failed transcode.
type ConversionError struct {
	From       model.Format
	To         model.Format
	Message    string
	CommandLog CommandLog
	Err        error
}

// Error formats the failure with the command exit code when present.
func (e *ConversionError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("convert %s to %s: %s", e.From, e.To, e.Message)
	}
	return fmt.Sprintf("convert %s to %s: %s (cmd=%s exit=%d)",
		e.From, e.To, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stderr and the exit code.
func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpeg transcodes audio files by running the ffmpeg binary.
//
// The output container is chosen from the destination extension, so the
// destination may be a temporary name as long as it keeps the target
// extension.
//
// Example:
//
//	ff := NewFFmpeg("ffmpeg", 192)
//	err := ff.Transcode(ctx, "/music/.song-123.part.m4a", "/music/.song-456.mp3")
type FFmpeg struct {
	path    string
	bitrate int
	runner  commandRunner
}

// NewFFmpeg creates a transcoder using the binary at path and the given
// audio bitrate in kbit/s. An empty path means "ffmpeg" from PATH; a
// non-positive bitrate means 192.
func NewFFmpeg(path string, bitrateKbps int) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if bitrateKbps <= 0 {
		bitrateKbps = 192
	}
	return &FFmpeg{path: path, bitrate: bitrateKbps, runner: execRunner{}}
}

// Supports reports whether the pair from -> to can be transcoded.
func (f *FFmpeg) Supports(from, to model.Format) bool {
	return SupportsConversion(from, to)
}

// Transcode converts src into dst. The formats are taken from the file
// extensions; pass the source format explicitly with TranscodeFrom when the
// source path has no meaningful extension.
//
// A partial dst is removed on failure or cancellation. src is never
// modified.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	from, _ := model.FormatOf(src)
	return f.TranscodeFrom(ctx, from, src, dst)
}

// TranscodeFrom is Transcode with an explicit source format.
func (f *FFmpeg) TranscodeFrom(ctx context.Context, from model.Format, src, dst string) error {
	to, _ := model.FormatOf(dst)
	if !SupportsConversion(from, to) {
		return &ConversionError{From: from, To: to, Message: "no supported extension", Err: ErrUnsupportedConversion}
	}

	args := f.buildArgs(to, src, dst)
	result, err := f.runner.Run(ctx, f.path, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		os.Remove(dst)
		return ctxErr
	}
	if err != nil {
		os.Remove(dst)
		return &ConversionError{
			From:    from,
			To:      to,
			Message: "ffmpeg failed",
			CommandLog: CommandLog{
				Command:  f.path,
				Args:     args,
				ExitCode: result.ExitCode,
				Stderr:   result.Stderr,
			},
			Err: err,
		}
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		os.Remove(dst)
		return &ConversionError{From: from, To: to, Message: "ffmpeg produced no output", Err: err}
	}
	return nil
}

func (f *FFmpeg) buildArgs(to model.Format, src, dst string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", src, "-vn"}
	bitrate := strconv.Itoa(f.bitrate) + "k"
	switch to {
	case model.FormatMP3:
		args = append(args, "-c:a", "libmp3lame", "-b:a", bitrate, "-f", "mp3")
	case model.FormatM4A:
		args = append(args, "-c:a", "aac", "-b:a", bitrate, "-f", "ipod")
	}
	return append(args, dst)
}
