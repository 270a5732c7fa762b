package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petems/wavspool/internal/app"
	"github.com/petems/wavspool/internal/audio"
	"github.com/petems/wavspool/internal/config"
	"github.com/petems/wavspool/internal/keypress"
	"github.com/petems/wavspool/internal/logging"
	"github.com/petems/wavspool/internal/observe"
	"github.com/petems/wavspool/internal/permissions"
	"github.com/petems/wavspool/internal/wavfile"
)

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "wavspool",
		Short: "Record the microphone to WAV files until a key is pressed",
		Long: `wavspool captures mono 32-bit float audio from an input device and spools it
to timestamped WAV files in the output directory. A new file is started every
256 MiB of audio; pressing any key writes the last file and exits.`,
		Example: `  wavspool
  wavspool -o recordings --backend pulse
  wavspool devices
  wavspool inspect 2024-05-01_12-00-00.wav`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return record(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newDevicesCmd(cfg))
	cmd.AddCommand(newInspectCmd())
	return cmd
}

func record(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(); err != nil {
		log.Error().Err(err).Msg("Required permissions not granted")
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", cfg.OutputDir).Msg("Failed to create output directory")
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The meter provider must be global before app.New picks up the default metrics
	if cfg.MetricsAddr != "" {
		shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize metrics")
			return err
		}
		defer func() { _ = shutdownMetrics(context.Background()) }()

		go func() {
			if err := observe.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	// Initialize audio capture
	capture, err := audio.New(cfg.Audio)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return err
	}
	defer capture.Close()

	application := app.New(app.Config{
		Audio:   capture,
		Sink:    wavfile.NewSink(log),
		Namer:   wavfile.NewNamer(cfg.OutputDir),
		Watcher: keypress.New(os.Stdin, cfg.PollInterval, log),
		Config:  cfg,
		Logger:  log,
	})

	log.Info().
		Str("version", Version).
		Str("output_dir", cfg.OutputDir).
		Str("backend", cfg.Audio.Backend).
		Msg("wavspool starting, press any key to stop")

	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Recording failed")
		return err
	}
	return nil
}
