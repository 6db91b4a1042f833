//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func probeDurationSeconds(mp4Path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

// probeStreams returns one "codec_type" per stream plus the video size.
func probeStreams(mp4Path string) (types []string, width, height int, err error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height",
		"-of", "csv=p=0",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		types = append(types, fields[0])
		if fields[0] == "video" && len(fields) >= 3 {
			width, _ = strconv.Atoi(fields[1])
			height, _ = strconv.Atoi(fields[2])
		}
	}
	return types, width, height, nil
}
