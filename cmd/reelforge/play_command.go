package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/oto"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <project>",
		Short: "Play a project through the system audio device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			audio, err := oto.NewContext(e.SampleRate())
			if err != nil {
				return err
			}
			defer audio.Close()
			sink := audio.Output()
			defer sink.Close()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)

			e.Play()
			duration := e.Project().Duration()
			buffer := make(reelforge.AudioBuffer, ctx.settings.BlockSize)
			player := e.Player()
			for {
				select {
				case <-interrupt:
					e.Stop()
					return nil
				default:
				}
				player.Process(buffer)
				if err := sink.WriteAudio(buffer); err != nil {
					return err
				}
				if t := e.TransportSnapshot(); t.PosSamples >= duration && !t.Loop.Enabled {
					e.Stop()
					return nil
				}
			}
		},
	}
	return cmd
}
