package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/engine"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <audio.wav>",
		Short: "Measure loudness, true peak and dynamics of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buffer, rate, err := reelforge.WavCodec{}.Decode(args[0])
			if err != nil {
				return err
			}
			res, err := measure(buffer, rate)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Measurement", "Value"},
				[][]string{
					{"Integrated loudness", fmt.Sprintf("%.1f LUFS", res.IntegratedLUFS)},
					{"Short-term loudness", fmt.Sprintf("%.1f LUFS", res.ShortTermLUFS)},
					{"Momentary loudness", fmt.Sprintf("%.1f LUFS", res.MomentaryLUFS)},
					{"Loudness range", fmt.Sprintf("%.1f LU", res.LoudnessRange)},
					{"True peak (max)", fmt.Sprintf("%.1f dBTP", res.MaxTruePeakDb)},
					{"PSR", fmt.Sprintf("%.1f  (%s)", res.PSR, res.PSRAssessment)},
					{"Crest factor", fmt.Sprintf("%.1f dB  (%s)", res.CrestDb, res.CrestAssessment)},
					{"Total loudness", fmt.Sprintf("%.1f sones  (%.1f phons)", res.Sones, res.Phons)},
					{"Sharpness", fmt.Sprintf("%.2f acum", res.Sharpness)},
					{"Fluctuation", fmt.Sprintf("%.2f vacil", res.Fluctuation)},
					{"Roughness", fmt.Sprintf("%.2f asper", res.Roughness)},
					{"Clipping", fmt.Sprintf("%t", res.Clipping)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
	return cmd
}

// measure runs the metering pipeline offline over a whole buffer.
func measure(buffer reelforge.AudioBuffer, rate int) (engine.DetectorResult, error) {
	broker := engine.NewBroker()
	var snap atomic.Pointer[engine.DetectorResult]
	det := engine.NewDetector(broker, &snap)
	go det.Run()

	broker.ToDetector <- engine.MsgToDetector{HasSampleRate: true, SampleRate: rate}
	const chunk = 4096
	for offset := 0; offset < len(buffer); offset += chunk {
		end := offset + chunk
		if end > len(buffer) {
			end = len(buffer)
		}
		data := broker.GetAudioBuffer()
		*data = append((*data)[:0], buffer[offset:end]...)
		broker.ToDetector <- engine.MsgToDetector{Data: data}
	}
	broker.ToDetector <- engine.MsgToDetector{Quit: true}
	engine.TimeoutReceive(broker.FinishedDetector, 30*time.Second)
	if res := snap.Load(); res != nil {
		return *res, nil
	}
	return engine.DetectorResult{}, fmt.Errorf("file too short to measure: %w", reelforge.ErrInvalidState)
}
