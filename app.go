package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"landscapes2/apiserver"
	"landscapes2/config"
	"landscapes2/midiparser"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		Level(cfg.App.Level()).
		With().Timestamp().Logger()
}

func setup(cmd *cli.Command) (*pipeline, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if song := cmd.String("song"); song != "" {
		cfg.Song.Path = song
	}
	if out := cmd.String("out"); out != "" {
		cfg.Output.Dir = out
	}
	return newPipeline(cfg, newLogger(cfg))
}

func runCapture(ctx context.Context, cmd *cli.Command) error {
	p, err := setup(cmd)
	if err != nil {
		return err
	}

	st, err := p.capturer.Start(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if st == nil {
		p.log.Warn().Msg("capture is disabled; nothing to do")
		return nil
	}
	if st.Artifact != nil {
		p.log.Info().
			Str("archive", st.Artifact.Path).
			Int("frames", st.Artifact.Frames).
			Int64("bytes", st.Artifact.Size).
			Msg("archive ready")
	}
	return nil
}

func runPreview(_ context.Context, cmd *cli.Command) error {
	p, err := setup(cmd)
	if err != nil {
		return err
	}
	return p.preview(cmd.String("png"))
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	p, err := setup(cmd)
	if err != nil {
		return err
	}

	var tasks []func(context.Context) error
	if cmd.Bool("watch") && p.cfg.Song.Path != "" {
		tasks = append(tasks, func(ctx context.Context) error {
			return midiparser.Watch(ctx, p.cfg.Song.Path, p.log, p.reload)
		})
	}

	srv := apiserver.New(p.capturer, p.log)
	return apiserver.Run(ctx, p.cfg.App.HTTP.Address(), srv, p.log, tasks...)
}

func commonFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:  "song",
			Usage: "MIDI or Tone.js JSON file, overrides song.path",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "Archive output directory, overrides output.dir",
		},
	}
	return append(flags, extra...)
}

func main() {
	cmd := &cli.Command{
		Name:  "landscapes",
		Usage: "Render the cue-driven landscapes animation frame by frame",
		Commands: []*cli.Command{
			{
				Name:   "capture",
				Usage:  "Capture every frame and package them into a zip archive",
				Flags:  commonFlags(),
				Action: runCapture,
			},
			{
				Name:  "preview",
				Usage: "Render the full-display landscape to a single PNG",
				Flags: commonFlags(&cli.StringFlag{
					Name:  "png",
					Usage: "PNG file to write",
					Value: "preview.png",
				}),
				Action: runPreview,
			},
			{
				Name:  "serve",
				Usage: "Serve POST /capture and GET /capture over HTTP",
				Flags: commonFlags(&cli.BoolFlag{
					Name:  "watch",
					Usage: "Reschedule cues whenever the song file changes",
				}),
				Action: runServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		log.Error().Err(err).Msg("application error")
		os.Exit(1)
	}
}
