package aubio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/beatreel/internal/ports/adapters/wavfile"
	"github.com/forPelevin/beatreel/internal/types"
)

// Adapter runs the aubio command line beat tracker on a temporary WAV copy
// of the samples.
type Adapter struct {
	bin     string
	workDir string
}

func New(binPath, workDir string) *Adapter {
	if binPath == "" {
		binPath = "aubio"
	}
	return &Adapter{bin: binPath, workDir: workDir}
}

func (a *Adapter) Detect(ctx context.Context, samples []float64, sampleRate int) (types.AudioAnalysis, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return types.AudioAnalysis{}, fmt.Errorf("%w: %d samples at %d Hz", types.ErrInvalidAudio, len(samples), sampleRate)
	}
	an := types.AudioAnalysis{Duration: float64(len(samples)) / float64(sampleRate)}

	wavPath := filepath.Join(a.workDir, "aubio-input.wav")
	if err := wavfile.Write(wavPath, samples, sampleRate); err != nil {
		return an, fmt.Errorf("%w: %w", types.ErrDetection, err)
	}
	defer os.Remove(wavPath)

	cmd := exec.CommandContext(ctx, a.bin, "beat", wavPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return an, fmt.Errorf("%w: aubio beat: %w\n%s", types.ErrDetection, err, stderr.String())
	}

	beats, err := ParseBeats(out)
	if err != nil {
		return an, fmt.Errorf("%w: %w", types.ErrDetection, err)
	}
	an.BeatTimes = beats
	return an, nil
}

// ParseBeats reads one timestamp in seconds per line, skipping blank lines.
func ParseBeats(b []byte) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("parse aubio beat %q: %w", line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}
