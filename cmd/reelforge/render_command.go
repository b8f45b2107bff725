package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/engine"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		outFlag       string
		normalizeFlag bool
		targetFlag    float32
		fromFlag      float64
		toFlag        float64
		tailFlag      float64
	)

	cmd := &cobra.Command{
		Use:   "render <project>",
		Short: "Bounce a project to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, err := ctx.bitDepth()
			if err != nil {
				return err
			}
			e, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			rate := e.SampleRate()
			opts := engine.RenderOptions{
				Path:        outFlag,
				BitDepth:    depth,
				From:        reelforge.SecondsToSamples(fromFlag, rate),
				To:          reelforge.SecondsToSamples(toFlag, rate),
				TailSamples: reelforge.SecondsToSamples(tailFlag, rate),
				BlockSize:   ctx.settings.BlockSize,
				Normalize:   normalizeFlag,
				TargetDb:    reelforge.Decibel(targetFlag),
			}
			if err := e.StartRender(opts); err != nil {
				return err
			}
			r := e.Renderer()
			for r.State() == engine.Rendering {
				fmt.Fprintf(cmd.OutOrStdout(), "\r%3.0f%%  %.1fx realtime  peak %.1f dBFS  ETA %s   ",
					r.Progress()*100, r.Speed(), r.PeakDb(), r.ETA().Round(time.Second))
				time.Sleep(100 * time.Millisecond)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			switch r.State() {
			case engine.RenderComplete:
				fmt.Fprintf(cmd.OutOrStdout(), "rendered %s (peak %.1f dBFS)\n", outFlag, r.PeakDb())
				return nil
			case engine.RenderCancelled:
				return fmt.Errorf("render cancelled")
			default:
				return fmt.Errorf("render failed: %w", r.Err())
			}
		},
	}

	cmd.Flags().StringVarP(&outFlag, "output", "o", "out.wav", "Output WAV path")
	cmd.Flags().BoolVar(&normalizeFlag, "normalize", false, "Normalize the bounce peak to the target level")
	cmd.Flags().Float32Var(&targetFlag, "target", -1, "Normalize target peak in dBFS")
	cmd.Flags().Float64Var(&fromFlag, "from", 0, "Start of the bounce range in seconds")
	cmd.Flags().Float64Var(&toFlag, "to", 0, "End of the bounce range in seconds (0 = end of project)")
	cmd.Flags().Float64Var(&tailFlag, "tail", 0, "Extra tail after the range in seconds")

	return cmd
}
