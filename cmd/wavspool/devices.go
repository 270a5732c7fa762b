package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petems/wavspool/internal/audio"
	"github.com/petems/wavspool/internal/config"
)

func newDevicesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List input devices and the formats of the selected one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			capture, err := audio.New(cfg.Audio)
			if err != nil {
				return err
			}
			defer capture.Close()

			devices, err := capture.ListDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Input devices (%s):\n", cfg.Audio.Backend)
			for _, d := range devices {
				marker := " "
				if d.Default {
					marker = "*"
				}
				fmt.Fprintf(out, " %s %s\n", marker, d.Name)
			}

			ranges, err := capture.SupportedConfigs()
			if err != nil {
				return fmt.Errorf("failed to query input configurations: %w", err)
			}
			fmt.Fprintln(out, "Supported formats:")
			for _, r := range ranges {
				fmt.Fprintf(out, "   %s\n", r)
			}

			rate, err := audio.SelectSampleRate(ranges, config.PreferredSampleRate)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Would record at %d Hz\n", rate)
			return nil
		},
	}
}
