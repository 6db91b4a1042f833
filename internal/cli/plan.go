package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/forPelevin/beatreel/internal/pipeline"
	"github.com/forPelevin/beatreel/internal/types"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <audio> <image|dir>...",
		Short: "Detect beats and print the slot plan without rendering",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			plan, err := pipeline.Plan(ctx, cfg)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	addRenderFlags(cmd)
	return cmd
}

func printPlan(w io.Writer, plan types.Plan) {
	mode := "beats"
	if plan.Fallback {
		mode = "even (fallback)"
	}
	fmt.Fprintf(w, "Duration: %s  Beats: %d  Slots: %d  Timing: %s\n",
		seconds(plan.Analysis.Duration), len(plan.Analysis.BeatTimes), len(plan.RenderSlots), mode)

	rows := make([][]string, 0, len(plan.RenderSlots))
	for i, s := range plan.RenderSlots {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			seconds(s.Start),
			seconds(s.Duration),
			seconds(s.Start + s.Duration),
			imageName(s.Image),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Start", "Duration", "End", "Image"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64) + "s"
}

func imageName(ref types.ImageRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	return ref.Path
}
