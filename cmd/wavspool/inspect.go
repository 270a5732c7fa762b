package main

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/petems/wavspool/internal/wavfile"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the header and length of recorded WAV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				st, err := os.Stat(path)
				if err != nil {
					return err
				}
				info, samples, err := wavfile.Read(path)
				if err != nil {
					return err
				}

				format := "pcm"
				if info.Float() {
					format = "float"
				}
				var length time.Duration
				if info.SampleRate > 0 && info.Channels > 0 {
					frames := len(samples) / info.Channels
					length = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
				}

				fmt.Fprintf(out, "%s: %d Hz, %d ch, %d-bit %s, %d samples, %s, %s\n",
					path, info.SampleRate, info.Channels, info.BitDepth, format,
					len(samples), length, units.HumanSize(float64(st.Size())))
			}
			return nil
		},
	}
}
