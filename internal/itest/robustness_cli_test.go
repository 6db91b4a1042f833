//go:build integration

package itest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

const cliTimeout = 30 * time.Second

type robustCase struct {
	name            string
	args            func(t *testing.T, repoRoot string) []string
	env             map[string]string
	wantContains    []string
	wantNotContains []string
}

type cliRunResult struct {
	exitCode int
	output   string
}

func TestRobustness_ArgsValidation(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name: "no args",
			args: staticArgs(),
			wantContains: []string{
				"requires at least 2 arg(s), only received 0",
			},
		},
		{
			name: "audio only",
			args: staticArgs("song.m4a"),
			wantContains: []string{
				"requires at least 2 arg(s), only received 1",
			},
		},
		{
			name: "unknown flag",
			args: staticArgs("song.m4a", "a.png", "--wat"),
			wantContains: []string{
				"unknown flag: --wat",
			},
		},
		{
			name: "fps non int",
			args: staticArgs("song.m4a", "a.png", "--fps", "nope"),
			wantContains: []string{
				`invalid argument "nope" for "--fps"`,
			},
		},
		{
			name: "fps zero",
			args: staticArgs("song.m4a", "a.png", "--fps", "0"),
			wantContains: []string{
				"config: render.fps must be > 0",
			},
		},
		{
			name: "unknown pad",
			args: staticArgs("song.m4a", "a.png", "--pad", "mirror"),
			wantContains: []string{
				`render.pad must be "blur" or "black"`,
			},
		},
		{
			name: "unknown detector",
			args: staticArgs("song.m4a", "a.png", "--detector", "magic"),
			wantContains: []string{
				`beats.detector must be "onset" or "aubio"`,
			},
		},
		{
			name: "broken config file",
			args: func(t *testing.T, _ string) []string {
				t.Helper()
				p := filepath.Join(t.TempDir(), "c.toml")
				if err := os.WriteFile(p, []byte("[render\n"), 0o644); err != nil {
					t.Fatalf("write config fixture: %v", err)
				}
				return []string{"song.m4a", "a.png", "--config", p}
			},
			wantContains: []string{
				"parse config",
			},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func TestRobustness_InvalidInputMedia(t *testing.T) {
	repoRoot := mustRepoRoot(t)
	fixtures := t.TempDir()
	audio := makeClickTrack(t, fixtures, "clicks.m4a", "2")
	images := makeImages(t, fixtures)

	notMedia := filepath.Join(fixtures, "not-media.txt")
	if err := os.WriteFile(notMedia, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	fakePNG := filepath.Join(fixtures, "fake.png")
	if err := os.WriteFile(fakePNG, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	emptyDir := filepath.Join(fixtures, "empty")
	if err := os.Mkdir(emptyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cases := []robustCase{
		{
			name: "missing audio",
			args: staticArgs(filepath.Join(fixtures, "does-not-exist.m4a"), images[0]),
			wantContains: []string{
				"config: stat audio:",
			},
		},
		{
			name: "missing image",
			args: staticArgs(audio, filepath.Join(fixtures, "nope.png")),
			wantContains: []string{
				"no such file or directory",
			},
		},
		{
			name: "image dir without images",
			args: staticArgs(audio, emptyDir),
			wantContains: []string{
				"no images in",
			},
		},
		{
			name: "audio is not media",
			args: staticArgs(notMedia, images[0]),
			wantContains: []string{
				"invalid audio: ffmpeg decode audio:",
			},
		},
		{
			name: "image is not decodable",
			args: func(t *testing.T, _ string) []string {
				return []string{audio, fakePNG, "--out", filepath.Join(t.TempDir(), "x.mp4")}
			},
			wantContains: []string{
				"invalid image: decode fake.png",
			},
		},
		{
			name: "ffmpeg binary missing",
			args: func(t *testing.T, _ string) []string {
				return []string{audio, images[0], "--out", filepath.Join(t.TempDir(), "x.mp4")}
			},
			env: map[string]string{
				"BEATREEL_FFMPEG": "/nonexistent/ffmpeg",
			},
			wantContains: []string{
				"invalid audio: ffmpeg decode audio:",
			},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func TestCLI_PlanPrintsSlots(t *testing.T) {
	repoRoot := mustRepoRoot(t)
	fixtures := t.TempDir()
	audio := makeClickTrack(t, fixtures, "clicks.wav", "4")
	makeImages(t, fixtures)

	res := runCLI(t, repoRoot, []string{"plan", audio, fixtures, "--max-slot", "1"}, nil)
	if res.exitCode != 0 {
		t.Fatalf("plan failed:\n%s", res.output)
	}
	for _, want := range []string{"Beats:", "01-wide.png", "02-tall.jpg", "03-square.png", "Duration"} {
		if !strings.Contains(res.output, want) {
			t.Fatalf("expected output to contain %q\noutput:\n%s", want, res.output)
		}
	}
}

func runRobustCases(t *testing.T, repoRoot string, cases []robustCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := runCLI(t, repoRoot, tc.args(t, repoRoot), tc.env)
			if res.exitCode == 0 {
				t.Fatalf("expected non-zero exit code, got 0\noutput:\n%s", res.output)
			}
			for _, want := range tc.wantContains {
				if !strings.Contains(res.output, want) {
					t.Fatalf("expected output to contain %q\noutput:\n%s", want, res.output)
				}
			}
			for _, notWant := range tc.wantNotContains {
				if strings.Contains(res.output, notWant) {
					t.Fatalf("expected output to not contain %q\noutput:\n%s", notWant, res.output)
				}
			}
		})
	}
}

func runCLI(t *testing.T, repoRoot string, args []string, env map[string]string) cliRunResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	cmdArgs := append([]string{"run", "./cmd/beatreel"}, args...)
	cmd := exec.CommandContext(ctx, "go", cmdArgs...)
	cmd.Dir = repoRoot
	cmd.Env = mergeEnv(
		os.Environ(),
		map[string]string{
			"NO_COLOR":          "1",
			"TERM":              "dumb",
			"BEATREEL_TEMP_DIR": t.TempDir(),
		},
		env,
	)

	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("command timed out after %s: go %s", cliTimeout, strings.Join(cmdArgs, " "))
	}

	res := cliRunResult{output: string(out)}
	if err == nil {
		res.exitCode = 0
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		return res
	}

	t.Fatalf("run command: %v\noutput:\n%s", err, string(out))
	return cliRunResult{}
}

func mergeEnv(base []string, overrides ...map[string]string) []string {
	env := make(map[string]string, len(base))
	for _, kv := range base {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		env[kv[:i]] = kv[i+1:]
	}

	for _, set := range overrides {
		for k, v := range set {
			env[k] = v
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}

func staticArgs(args ...string) func(t *testing.T, _ string) []string {
	clone := append([]string(nil), args...)
	return func(t *testing.T, _ string) []string {
		t.Helper()
		return append([]string(nil), clone...)
	}
}
