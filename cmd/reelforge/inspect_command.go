package main

import (
	"fmt"

	"github.com/spf13/cobra"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <project>",
		Short: "Print the routing graph and clip layout of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer e.Close()
			p := e.Project()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s  (%d Hz, %.0f BPM, %d/%d)\n\n",
				p.Name, p.SampleRate, p.Transport.BPM, p.Transport.TimeSigNum, p.Transport.TimeSigDen)

			rows := make([][]string, 0, len(p.Tracks))
			for i := range p.Tracks {
				t := &p.Tracks[i]
				rows = append(rows, []string{
					fmt.Sprintf("%d", t.ID),
					t.Name,
					p.Buses[t.Bus].Name,
					fmt.Sprintf("%.2f", t.Volume),
					fmt.Sprintf("%+.2f", t.Pan),
					flags(t.Mute, t.Solo, t.Arm),
					fmt.Sprintf("%d", len(t.Clips)),
					fmt.Sprintf("%d", len(t.Chain.Slots)),
					fmt.Sprintf("%d", len(t.Sends)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Track", "Bus", "Vol", "Pan", "Flags", "Clips", "FX", "Sends"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight},
			))

			clipRows := make([][]string, 0)
			for i := range p.Tracks {
				for j := range p.Tracks[i].Clips {
					c := &p.Tracks[i].Clips[j]
					clipRows = append(clipRows, []string{
						fmt.Sprintf("%d", c.ID),
						p.Tracks[i].Name,
						c.Name,
						seconds(c.Start, p.SampleRate),
						seconds(c.Duration, p.SampleRate),
						fmt.Sprintf("%+.1f dB", float32(c.GainDb)),
					})
				}
			}
			if len(clipRows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Track", "Clip", "Start", "Length", "Gain"},
					clipRows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
			}
			return nil
		},
	}
	return cmd
}

func flags(mute, solo, arm bool) string {
	s := ""
	if mute {
		s += "M"
	}
	if solo {
		s += "S"
	}
	if arm {
		s += "R"
	}
	return s
}

func seconds(samples int64, rate int) string {
	t := reelforge.Transport{PosSamples: samples}
	return fmt.Sprintf("%.2fs", t.PosSeconds(rate))
}
