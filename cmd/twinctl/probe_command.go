package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/templui/twinboard/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the container and streams of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			res, err := ffprobe.Inspect(cmd.Context(), cfg.Capture.FFprobeBinary, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProbe(res))
			return nil
		},
	}
}

func renderProbe(res ffprobe.Result) string {
	summary := renderTable(
		[]string{"Format", "Duration", "Audio", "Video"},
		[][]string{{
			res.Format.FormatName,
			formatSeconds(res.DurationSeconds()),
			strconv.Itoa(res.AudioStreamCount()),
			strconv.Itoa(res.VideoStreamCount()),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)

	rows := make([][]string, 0, len(res.Streams))
	for _, s := range res.Streams {
		rows = append(rows, []string{strconv.Itoa(s.Index), s.CodecType, s.CodecName, s.Duration})
	}
	streams := renderTable(
		[]string{"#", "Type", "Codec", "Duration"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
	return summary + "\n" + streams + "\n"
}
