//go:build integration

package itest

import (
	"os/exec"
	"path/filepath"
	"testing"
)

// clickExpr is a 1 kHz blip every half second: 120 BPM.
const clickExpr = "0.8*sin(2*PI*1000*t)*lt(mod(t\\,0.5)\\,0.03)"

func ffmpegFixture(t *testing.T, args ...string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", append([]string{"-y", "-v", "error"}, args...)...)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
}

// makeClickTrack writes a click track of the given length; the extension
// picks the container.
func makeClickTrack(t *testing.T, dir, name string, seconds string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	ffmpegFixture(t,
		"-f", "lavfi",
		"-i", "aevalsrc="+clickExpr+":s=44100:d="+seconds,
		p,
	)
	return p
}

// makeImages writes a landscape, a portrait and a square still.
func makeImages(t *testing.T, dir string) []string {
	t.Helper()
	specs := []struct{ name, src string }{
		{"01-wide.png", "testsrc=s=640x360"},
		{"02-tall.jpg", "color=c=red:s=360x900"},
		{"03-square.png", "smptebars=s=400x400"},
	}
	var out []string
	for _, s := range specs {
		p := filepath.Join(dir, s.name)
		ffmpegFixture(t, "-f", "lavfi", "-i", s.src, "-frames:v", "1", p)
		out = append(out, p)
	}
	return out
}
