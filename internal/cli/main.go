package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "beatreel <audio> <image|dir>...",
		Short: "Cut a beat-synced vertical slideshow from images and a song",
		Long: "beatreel detects the beats of an audio track and turns a set of images into a\n" +
			"vertical video that changes picture on every beat. Directories expand to the\n" +
			"images they contain, sorted by name.",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	addRenderFlags(root)
	root.Flags().String("out", "", "Output video path (default <audio name>-reel.mp4)")
	root.Flags().String("manifest", "", "Also write a JSON manifest of the slots to this path")

	// Hidden debugging flag
	root.Flags().Bool("keep-temp", false, "Keep the request workspace after the run")
	_ = root.Flags().MarkHidden("keep-temp")

	root.AddCommand(newPlanCommand())
	root.AddCommand(newConfigCommand())
	return root
}

// addRenderFlags registers the flags shared by rendering and planning. Each
// one overrides the config file only when set explicitly.
func addRenderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "Config file (default ~/.config/beatreel/config.toml or ./beatreel.toml)")
	f.String("pad", "", "Pad mode for wide images: blur or black")
	f.Int("fps", 0, "Output frame rate")
	f.Float64("max-slot", 0, "Split slots longer than this many seconds (0 disables)")
	f.Int("min-slots", 0, "Fall back to even slots below this many beats (default: image count)")
	f.String("detector", "", "Beat detector: onset or aubio")
	f.Int("workers", 0, "Parallel image normalizers (default: CPU count)")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("log-format", "", "Log format: console or json")
}
