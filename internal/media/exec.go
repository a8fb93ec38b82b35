package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// ESpeakSynthesizer shells out to espeak-ng for TTS and ffmpeg for the
// MP3 encode. Available only when both binaries are on PATH.
type ESpeakSynthesizer struct {
	// TmpDir holds intermediate wav files; empty means os.TempDir.
	TmpDir string
	// Voice overrides the voice derived from the language code.
	Voice string
	// WordsPerMinute is the reading speed; 0 keeps the espeak default.
	WordsPerMinute int
	// Tempo stretches the encoded audio (1.0 is unchanged); applied as an
	// ffmpeg atempo filter, valid between 0.5 and 2.0.
	Tempo float64

	run func(ctx context.Context, name string, args ...string) error
}

func NewESpeakSynthesizer(tmpDir string) *ESpeakSynthesizer {
	return &ESpeakSynthesizer{TmpDir: tmpDir, run: runCommand}
}

// ESpeakAvailable reports whether the synthesis binaries are installed.
func ESpeakAvailable() bool {
	return binaryOnPath("espeak-ng") && binaryOnPath("ffmpeg")
}

func (s *ESpeakSynthesizer) Synthesize(ctx context.Context, text, langCode string) (*AudioSegment, error) {
	tmpDir := s.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	base := filepath.Join(tmpDir, "tts_"+uuid.NewString())
	wav := base + ".wav"
	mp3 := base + ".mp3"
	defer os.Remove(wav)
	defer os.Remove(mp3)

	voice := s.Voice
	if voice == "" {
		voice = espeakVoice(langCode)
	}
	args := []string{"-v", voice, "-w", wav}
	if s.WordsPerMinute > 0 {
		args = append(args, "-s", strconv.Itoa(s.WordsPerMinute))
	}
	args = append(args, text)
	if err := s.run(ctx, "espeak-ng", args...); err != nil {
		return nil, fmt.Errorf("espeak-ng: %w", err)
	}

	encode := []string{"-y", "-loglevel", "error", "-i", wav}
	if s.Tempo > 0 && s.Tempo != 1.0 {
		encode = append(encode, "-filter:a", fmt.Sprintf("atempo=%.2f", clampTempo(s.Tempo)))
	}
	encode = append(encode, "-codec:a", "libmp3lame", "-qscale:a", "4", mp3)
	if err := s.run(ctx, "ffmpeg", encode...); err != nil {
		return nil, fmt.Errorf("ffmpeg encode: %w", err)
	}

	data, err := os.ReadFile(mp3)
	if err != nil {
		return nil, err
	}
	return &AudioSegment{Data: data, Duration: probeDuration(ctx, mp3, text)}, nil
}

// espeakVoice maps a language code to an espeak voice tag. espeak accepts
// bare ISO 639-1 codes for every language the pipeline targets.
func espeakVoice(langCode string) string {
	code := strings.ToLower(strings.TrimSpace(langCode))
	if i := strings.IndexByte(code, '-'); i > 0 {
		code = code[:i]
	}
	if code == "" {
		return "en"
	}
	return code
}

// clampTempo bounds the stretch factor to the range ffmpeg's atempo
// filter accepts in a single pass.
func clampTempo(t float64) float64 {
	if t < 0.5 {
		return 0.5
	}
	if t > 2.0 {
		return 2.0
	}
	return t
}

// probeDuration asks ffprobe; a missing probe falls back to a rune-count
// estimate so progress math keeps working.
func probeDuration(ctx context.Context, path, text string) time.Duration {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path).Output()
	if err == nil {
		if secs, perr := strconv.ParseFloat(strings.TrimSpace(string(out)), 64); perr == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Duration(utf8.RuneCountInString(text)) * 60 * time.Millisecond
}

// FFmpegCompositor renders a batch MP4: each text block is shown over a
// solid background while the batch audio plays.
type FFmpegCompositor struct {
	// TmpDir holds the intermediate audio and text files.
	TmpDir string

	run func(ctx context.Context, name string, args ...string) error
}

func NewFFmpegCompositor(tmpDir string) *FFmpegCompositor {
	return &FFmpegCompositor{TmpDir: tmpDir, run: runCommand}
}

// FFmpegAvailable reports whether video rendering can run.
func FFmpegAvailable() bool { return binaryOnPath("ffmpeg") }

func (c *FFmpegCompositor) Compose(ctx context.Context, videoBlocks []string, segments []*AudioSegment, outPath string) error {
	tmpDir := c.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	base := filepath.Join(tmpDir, "mp4_"+uuid.NewString())
	audioPath := base + ".mp3"
	textPath := base + ".txt"
	defer os.Remove(audioPath)
	defer os.Remove(textPath)

	audio := Concat(segments)
	withAudio := len(audio.Data) > 0
	if withAudio {
		if err := os.WriteFile(audioPath, audio.Data, 0o644); err != nil {
			return err
		}
	}
	if err := os.WriteFile(textPath, []byte(strings.Join(videoBlocks, "\n\n")), 0o644); err != nil {
		return err
	}

	duration := audio.Duration
	if duration <= 0 {
		duration = time.Duration(len(videoBlocks)) * 3 * time.Second
	}
	secs := fmt.Sprintf("%.2f", duration.Seconds())

	args := []string{"-y", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s=1280x720:d=" + secs}
	if withAudio {
		args = append(args, "-i", audioPath)
	}
	args = append(args,
		"-vf", "drawtext=textfile="+textPath+":fontcolor=white:fontsize=28:x=(w-text_w)/2:y=(h-text_h)/2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p")
	if withAudio {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args, outPath)

	if err := c.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg compose: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Debug("Command failed", "binary", name, "output", strings.TrimSpace(string(out)))
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func binaryOnPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
