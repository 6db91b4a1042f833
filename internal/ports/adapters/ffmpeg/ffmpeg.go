package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/beatreel/internal/types"
)

// DecodeSampleRate is the mono rate DecodeAudio resamples to.
const DecodeSampleRate = 22050

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) DecodeAudio(ctx context.Context, path string) ([]float64, int, error) {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(DecodeSampleRate),
		"-f", "f32le",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: ffmpeg decode audio: %w\n%s", types.ErrInvalidAudio, err, stderr.String())
	}
	samples := parseF32LE(out)
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("%w: ffmpeg decode audio: no samples in %s", types.ErrInvalidAudio, path)
	}
	return samples, DecodeSampleRate, nil
}

func parseF32LE(b []byte) []float64 {
	n := len(b) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return out
}

// Encode writes job to outPath. The file is produced under a temporary name
// and renamed on success, so a failed encode never leaves a partial video.
func (a *Adapter) Encode(ctx context.Context, job types.RenderJob, outPath string) error {
	if len(job.Segments) == 0 {
		return fmt.Errorf("%w: empty sequence", types.ErrEncode)
	}
	if job.Duration <= 0 || job.FPS <= 0 {
		return fmt.Errorf("%w: duration %v fps %d", types.ErrEncode, job.Duration, job.FPS)
	}

	listPath := filepath.Join(filepath.Dir(job.Segments[0].CanvasPath), "sequence.ffconcat")
	if err := os.WriteFile(listPath, []byte(ConcatList(job.Segments)), 0o644); err != nil {
		return fmt.Errorf("%w: write concat list: %w", types.ErrEncode, err)
	}

	tmpOut := partialPath(outPath)
	cmd := exec.CommandContext(ctx, a.ffmpeg, encodeArgs(job, listPath, tmpOut)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(tmpOut)
		return fmt.Errorf("%w: ffmpeg encode: %w\n%s", types.ErrEncode, err, string(b))
	}
	if err := os.Rename(tmpOut, outPath); err != nil {
		_ = os.Remove(tmpOut)
		return fmt.Errorf("%w: %w", types.ErrEncode, err)
	}
	return nil
}

func encodeArgs(job types.RenderJob, listPath, outPath string) []string {
	return []string{
		"-y",
		"-v", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", job.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", fmt.Sprintf("fps=%d,format=yuv420p", job.FPS),
		"-r", strconv.Itoa(job.FPS),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "stillimage",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", fmtSeconds(job.Duration),
		"-movflags", "+faststart",
		outPath,
	}
}

// ConcatList renders segments in ffconcat format. The last file is listed
// twice because the demuxer ignores the duration of the final entry.
func ConcatList(segs []types.Segment) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, s := range segs {
		b.WriteString("file '")
		b.WriteString(escapeConcatPath(s.CanvasPath))
		b.WriteString("'\nduration ")
		b.WriteString(strconv.FormatFloat(s.Duration, 'f', 6, 64))
		b.WriteString("\n")
	}
	if len(segs) > 0 {
		b.WriteString("file '")
		b.WriteString(escapeConcatPath(segs[len(segs)-1].CanvasPath))
		b.WriteString("'\n")
	}
	return b.String()
}

func partialPath(outPath string) string {
	dir, base := filepath.Split(outPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), "'", `'\''`)
}
