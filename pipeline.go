package main

import (
	"context"
	"fmt"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"

	"landscapes2/archive"
	"landscapes2/capture"
	"landscapes2/config"
	"landscapes2/cues"
	"landscapes2/frames"
	"landscapes2/midiparser"
	"landscapes2/scene"
	"landscapes2/sketch"
)

// pipeline is one configured capturer with everything it reads from.
type pipeline struct {
	cfg      *config.Config
	log      zerolog.Logger
	song     *midiparser.Song
	state    *sketch.State
	pool     *scene.Pool
	capturer *capture.Capturer
}

func newPipeline(cfg *config.Config, log zerolog.Logger) (*pipeline, error) {
	song := &midiparser.Song{}
	if cfg.Song.Path != "" {
		var err error
		song, err = midiparser.LoadFile(cfg.Song.Path)
		if err != nil {
			return nil, fmt.Errorf("load song: %w", err)
		}
		log.Info().
			Str("song", song.Name).
			Int("tracks", len(song.Tracks)).
			Float64("seconds", song.Duration()).
			Msg("song loaded")
	}

	p := &pipeline{
		cfg:   cfg,
		log:   log,
		song:  song,
		state: sketch.NewState(cfg.Song.Tempo()),
		pool:  scene.NewPool(cfg.Scene.PoolSize, cfg.Scene.Cols, cfg.Scene.Rows, cfg.Scene.Seed),
	}

	table, err := p.schedule(song)
	if err != nil {
		return nil, err
	}

	opts := cfg.Capture.Options(song.Duration())
	packager := archive.NewPackager(cfg.Output.Dir, opts.FrameRate, archive.WithLogger(log))

	options := []capture.Option{
		capture.WithInitialScene(p.pool.Preview()),
		capture.WithLogger(log),
	}
	if cfg.Output.FramesDir != "" {
		options = append(options, capture.WithExport(p.exportFrames))
	}

	p.capturer, err = capture.New(opts, table, p.pool, packager, options...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// schedule builds the cue table for song. A song without notes, as when no
// path is configured, gives an empty table.
func (p *pipeline) schedule(song *midiparser.Song) (*cues.Table, error) {
	if len(song.Tracks) == 0 {
		return cues.NewBuilder(sketch.Registry()).Build(), nil
	}
	table, err := sketch.Schedule(song.Tracks, p.cfg.Song.Bindings(), p.state)
	if err != nil {
		return nil, fmt.Errorf("schedule cues: %w", err)
	}
	p.log.Info().Int("cues", table.Len()).Msg("cues scheduled")
	return table, nil
}

func (p *pipeline) exportFrames(ctx context.Context, fr []*frames.Frame) error {
	opts := p.capturer.Options()
	p.log.Info().Str("dir", p.cfg.Output.FramesDir).Int("frames", len(fr)).Msg("exporting frames")
	return archive.ExportDir(ctx, fr, p.cfg.Output.FramesDir, opts.Prefix, opts.FrameRate, p.cfg.Output.ExportWorkers)
}

// reload reschedules the capturer from a freshly parsed song. The frame
// count stays as configured at startup.
func (p *pipeline) reload(song *midiparser.Song) {
	table, err := p.schedule(song)
	if err != nil {
		p.log.Error().Err(err).Msg("reschedule failed; keeping previous cues")
		return
	}
	if err := p.capturer.Reschedule(table); err != nil {
		p.log.Warn().Err(err).Msg("reschedule skipped")
		return
	}
	p.song = song
}

// preview renders the pool's full-display landscape to path.
func (p *pipeline) preview(path string) error {
	opts := p.capturer.Options()
	dc := gg.NewContext(opts.Width, opts.Height)
	p.pool.Preview().Draw(dc)
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	p.log.Info().Str("path", path).Msg("preview written")
	return nil
}
