// Package onset is a small in-process beat tracker: spectral-flux onset
// strength, tempo from its autocorrelation, then beats placed one period apart
// and snapped to the strongest nearby onset.
package onset

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/forPelevin/beatreel/internal/types"
)

const (
	DefaultFrameSize = 2048
	DefaultHopSize   = 512
	DefaultMinBPM    = 60
	DefaultMaxBPM    = 180

	// tempo prior centre; octave errors are resolved towards it
	preferredBPM = 120
	// envelopes whose peak stays below this are silence or a steady tone
	minOnsetStrength = 1e-3
	meanWindowSec    = 0.25
)

type Detector struct {
	FrameSize int
	HopSize   int
	MinBPM    float64
	MaxBPM    float64
}

func New(minBPM, maxBPM float64) *Detector {
	d := &Detector{FrameSize: DefaultFrameSize, HopSize: DefaultHopSize, MinBPM: minBPM, MaxBPM: maxBPM}
	if d.MinBPM <= 0 {
		d.MinBPM = DefaultMinBPM
	}
	if d.MaxBPM <= d.MinBPM {
		d.MaxBPM = math.Max(DefaultMaxBPM, d.MinBPM*2)
	}
	return d
}

func (d *Detector) Detect(ctx context.Context, samples []float64, sampleRate int) (types.AudioAnalysis, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return types.AudioAnalysis{}, fmt.Errorf("%w: %d samples at %d Hz", types.ErrInvalidAudio, len(samples), sampleRate)
	}
	an := types.AudioAnalysis{Duration: float64(len(samples)) / float64(sampleRate)}
	if d.FrameSize <= 0 || d.HopSize <= 0 {
		return an, fmt.Errorf("%w: frame %d hop %d", types.ErrDetection, d.FrameSize, d.HopSize)
	}
	if len(samples) < d.FrameSize*2 {
		return an, nil
	}

	frameRate := float64(sampleRate) / float64(d.HopSize)
	env, err := d.onsetEnvelope(ctx, samples, frameRate)
	if err != nil {
		return an, err
	}
	period := d.tempoPeriod(env, frameRate)
	if period == 0 {
		return an, nil
	}
	for _, f := range trackBeats(env, period) {
		an.BeatTimes = append(an.BeatTimes, d.onsetTime(f, sampleRate))
	}
	return an, nil
}

// onsetTime maps an envelope frame to seconds. The first frame whose window
// reaches an onset holds it in its last hop.
func (d *Detector) onsetTime(frame, sampleRate int) float64 {
	lag := max(0, d.FrameSize-d.HopSize)
	return float64(frame*d.HopSize+lag) / float64(sampleRate)
}

// onsetEnvelope returns the half-wave rectified spectral flux per hop with
// its local mean removed.
func (d *Detector) onsetEnvelope(ctx context.Context, samples []float64, frameRate float64) ([]float64, error) {
	n := d.FrameSize
	frames := 1 + (len(samples)-n)/d.HopSize
	fft := fourier.NewFFT(n)
	win := hann(n)

	buf := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	prev := make([]float64, n/2+1)
	flux := make([]float64, frames)

	for f := 0; f < frames; f++ {
		if f%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		off := f * d.HopSize
		for i := 0; i < n; i++ {
			buf[i] = samples[off+i] * win[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		var sum float64
		for k, c := range coeffs {
			mag := math.Log1p(100 * cmplx.Abs(c))
			if f > 0 && mag > prev[k] {
				sum += mag - prev[k]
			}
			prev[k] = mag
		}
		flux[f] = sum
	}

	radius := max(1, int(math.Round(meanWindowSec*frameRate)))
	env := make([]float64, frames)
	for f := range flux {
		lo := max(0, f-radius)
		hi := min(frames-1, f+radius)
		var mean float64
		for i := lo; i <= hi; i++ {
			mean += flux[i]
		}
		mean /= float64(hi - lo + 1)
		env[f] = math.Max(0, flux[f]-mean)
	}
	return env, nil
}

// tempoPeriod returns the beat period in frames, or 0 when the envelope has
// no usable periodicity.
func (d *Detector) tempoPeriod(env []float64, frameRate float64) int {
	minLag := max(1, int(math.Round(60/d.MaxBPM*frameRate)))
	maxLag := min(len(env)-1, int(math.Round(60/d.MinBPM*frameRate)))
	if minLag > maxLag {
		return 0
	}

	var peak, mean float64
	for _, v := range env {
		peak = math.Max(peak, v)
		mean += v
	}
	if peak < minOnsetStrength {
		return 0
	}
	mean /= float64(len(env))

	centered := make([]float64, len(env))
	var variance float64
	for i, v := range env {
		centered[i] = v - mean
		variance += centered[i] * centered[i]
	}
	variance /= float64(len(env))
	if variance == 0 {
		return 0
	}

	best, bestScore, bestRaw := 0, 0.0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for i := lag; i < len(env); i++ {
			ac += centered[i] * centered[i-lag]
		}
		ac /= float64(len(env) - lag)
		bpm := 60 * frameRate / float64(lag)
		octaves := math.Log2(bpm / preferredBPM)
		score := ac * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			best, bestScore, bestRaw = lag, score, ac
		}
	}
	if bestRaw < 0.1*variance {
		return 0
	}
	return best
}

// trackBeats starts at the strongest onset within the first period and steps
// one period at a time, snapping each beat to the strongest onset within a
// quarter period. Returned frames are strictly increasing.
func trackBeats(env []float64, period int) []int {
	if period <= 0 || len(env) == 0 {
		return nil
	}
	first := argmax(env, 0, min(period, len(env))-1)
	beats := []int{first}
	tol := max(1, period/4)
	for {
		last := beats[len(beats)-1]
		expect := last + period
		if expect >= len(env) {
			break
		}
		lo := max(last+1, expect-tol)
		hi := min(len(env)-1, expect+tol)
		next := argmax(env, lo, hi)
		if env[next] == 0 {
			next = expect
		}
		beats = append(beats, next)
	}
	return beats
}

func argmax(v []float64, lo, hi int) int {
	best := lo
	for i := lo + 1; i <= hi; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
