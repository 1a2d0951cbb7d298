// Package capture renders a cue-driven scene timeline frame by frame at a
// fixed virtual rate and packages the frames into an archive.
package capture

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"

	"landscapes2/archive"
	"landscapes2/cues"
	"landscapes2/frames"
	"landscapes2/scene"
)

// Capturer owns the drawing surface and the active scene for the length of
// a run. Only Start/StartAsync and Snapshot are safe for concurrent use.
type Capturer struct {
	opts     Options
	table    *cues.Table
	scenes   scene.Resolver
	packager Packager
	raster   Rasterizer
	initial  scene.Scene
	export   ExportFunc
	log      zerolog.Logger

	surface *gg.Context
	face    font.Face

	running atomic.Bool

	mu   sync.Mutex
	last Snapshot
}

type Option func(*Capturer)

func WithRasterizer(r Rasterizer) Option {
	return func(c *Capturer) {
		c.raster = r
	}
}

// WithInitialScene sets the scene drawn before the first cue fires.
func WithInitialScene(s scene.Scene) Option {
	return func(c *Capturer) {
		c.initial = s
	}
}

// WithExport hands the finalized frames of every completed run to fn
// before they are packaged.
func WithExport(fn ExportFunc) Option {
	return func(c *Capturer) {
		c.export = fn
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Capturer) {
		c.log = log
	}
}

func New(opts Options, table *cues.Table, scenes scene.Resolver, packager Packager, options ...Option) (*Capturer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("capture options: %w", err)
	}
	if table == nil {
		table = cues.NewBuilder(nil).Build()
	}

	c := &Capturer{
		opts:     opts,
		table:    table,
		scenes:   scenes,
		packager: packager,
		raster:   PNGRasterizer{},
		log:      zerolog.Nop(),
		surface:  gg.NewContext(opts.Width, opts.Height),
		last:     Snapshot{Status: Idle, TotalFrames: opts.TotalFrames},
	}
	for _, o := range options {
		o(c)
	}

	if opts.Overlay {
		face, err := overlayFace(opts.Height)
		if err != nil {
			return nil, err
		}
		c.face = face
	}

	return c, nil
}

func (c *Capturer) Options() Options { return c.opts }

// Running reports whether a guarded run is in progress.
func (c *Capturer) Running() bool { return c.running.Load() }

// Reschedule swaps the cue table used by the next run. It returns
// ErrRunning instead of touching the table while any run is in progress.
func (c *Capturer) Reschedule(table *cues.Table) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer c.running.Store(false)
	c.table = table
	return nil
}

// Start captures and packages one run. It is a no-op returning (nil, nil)
// when capturing is disabled or another run holds the guard.
func (c *Capturer) Start(ctx context.Context) (*RunState, error) {
	if !c.acquire() {
		return nil, nil
	}
	defer c.running.Store(false)
	return c.run(ctx)
}

// StartAsync takes the guard synchronously and runs in a new goroutine,
// calling done when the run ends. It reports whether a run was started.
func (c *Capturer) StartAsync(ctx context.Context, done func(*RunState, error)) bool {
	if !c.acquire() {
		return false
	}
	go func() {
		defer c.running.Store(false)
		st, err := c.run(ctx)
		if done != nil {
			done(st, err)
		}
	}()
	return true
}

func (c *Capturer) acquire() bool {
	if !c.opts.Enabled {
		c.log.Debug().Msg("capture disabled; start ignored")
		return false
	}
	if !c.running.CompareAndSwap(false, true) {
		c.log.Debug().Msg("capture already running; start ignored")
		return false
	}
	return true
}

func (c *Capturer) run(ctx context.Context) (*RunState, error) {
	st, err := c.capture(ctx, NewRunState(c.opts.Enabled))
	if err != nil {
		return st, err
	}
	if c.export != nil && st.Store.Len() > 0 {
		if err := c.export(ctx, st.Store.Finalize()); err != nil {
			st.Err = fmt.Errorf("export frames: %w", err)
			c.publish(st)
			return st, st.Err
		}
	}
	if _, err := c.Package(st); err != nil {
		st.Err = err
		c.publish(st)
		return st, err
	}
	return st, nil
}

// Capture runs the frame loop on st without packaging. On error st is
// Aborted, already captured frames stay in st.Store and the error is
// returned. It holds the same guard as Start, so it returns ErrRunning while
// another run or a Reschedule is in progress.
func (c *Capturer) Capture(ctx context.Context, st *RunState) (*RunState, error) {
	if !c.running.CompareAndSwap(false, true) {
		return st, ErrRunning
	}
	defer c.running.Store(false)
	return c.capture(ctx, st)
}

func (c *Capturer) capture(ctx context.Context, st *RunState) (*RunState, error) {
	if st == nil {
		st = NewRunState(c.opts.Enabled)
	}
	if st.Status == Running {
		return st, ErrRunning
	}

	st.Status = Running
	st.InProgress = true
	st.Err = nil
	st.Artifact = nil
	st.NextIndex = 0
	st.LastPosition = 0
	st.Store.Clear()
	st.StartedAt = time.Now()
	c.table.Reset()
	c.publish(st)

	log := c.log.With().Str("run", st.ID.String()).Logger()
	log.Info().
		Int("total_frames", c.opts.TotalFrames).
		Int("frame_rate", c.opts.FrameRate).
		Int("cues", c.table.Len()).
		Msg("capture started")

	current := c.initial
	prev := math.Inf(-1)

	for frame := 0; frame < c.opts.TotalFrames; frame++ {
		if err := ctx.Err(); err != nil {
			return c.abort(log, st, frame, err)
		}

		t := FrameTime(frame, c.opts.FrameRate)
		nowMs := t * 1000

		req, err := c.dispatch(prev, t)
		if err != nil {
			return c.abort(log, st, frame, err)
		}
		if req != nil {
			if c.scenes == nil {
				return c.abort(log, st, frame, fmt.Errorf("resolve scene %d: %w", req.Index, scene.ErrNoScene))
			}
			next, err := c.scenes.Resolve(*req, nowMs)
			if err != nil {
				return c.abort(log, st, frame, fmt.Errorf("resolve scene %d: %w", req.Index, err))
			}
			current = next
		}

		st.LastPosition = PlaybackPosition(t, c.opts.SampleRate)

		c.clearSurface()
		if current != nil {
			current.Update(nowMs)
			current.Draw(c.surface)
		}
		if c.face != nil {
			drawFrameLabel(c.surface, c.face, frame)
		}

		data, err := c.raster.Rasterize(ctx, c.surface)
		if err != nil {
			return c.abort(log, st, frame, fmt.Errorf("%w %d: %w", ErrRasterize, frame, err))
		}

		st.Store.Add(frames.New(c.opts.Prefix, frame, data))
		st.NextIndex = frame + 1
		prev = t
		c.publish(st)

		if c.opts.LogEvery > 0 && (frame+1)%c.opts.LogEvery == 0 {
			log.Debug().Msgf("Capturing frame %d / %d", frame+1, c.opts.TotalFrames)
		}
	}

	st.Status = Completed
	st.InProgress = false
	st.FinishedAt = time.Now()
	c.publish(st)

	log.Info().
		Int("frames", st.Store.Len()).
		Int("bytes", st.Store.Bytes()).
		Dur("elapsed", st.FinishedAt.Sub(st.StartedAt)).
		Msg("capture complete")

	return st, nil
}

// dispatch fires the cues due in (since, upto] in order. The request of the
// last cue that asked for a scene wins.
func (c *Capturer) dispatch(since, upto float64) (*scene.Request, error) {
	var req *scene.Request
	for _, cue := range c.table.DueCues(since, upto) {
		r, err := cue.Fire()
		if err != nil {
			return nil, fmt.Errorf("cue %s #%d at %.3fs: %w", cue.HandlerName, cue.Payload.Cue, cue.Time, err)
		}
		if r != nil {
			req = r
		}
	}
	return req, nil
}

func (c *Capturer) clearSurface() {
	c.surface.SetRGBA(0, 0, 0, 0)
	c.surface.Clear()
}

func (c *Capturer) abort(log zerolog.Logger, st *RunState, frame int, err error) (*RunState, error) {
	st.Status = Aborted
	st.InProgress = false
	st.Err = err
	st.FinishedAt = time.Now()
	c.publish(st)

	log.Error().Err(err).Int("frame", frame).Int("kept_frames", st.Store.Len()).Msg("capture aborted")
	return st, err
}

// Package archives the frames of st. A completed run returns to Idle; an
// aborted run keeps its status so callers can still tell it apart. With no
// frames it returns (nil, nil).
func (c *Capturer) Package(st *RunState) (*archive.Artifact, error) {
	if st.Status == Running {
		return nil, ErrRunning
	}
	if c.packager == nil {
		return nil, fmt.Errorf("package run %s: no packager configured", st.ID)
	}

	art, err := c.packager.Build(st.Store.Finalize(), c.opts.Prefix)
	if err != nil {
		return nil, fmt.Errorf("package run %s: %w", st.ID, err)
	}

	if art != nil {
		st.Store.Clear()
		st.NextIndex = 0
		st.Artifact = art
	}
	if st.Status == Completed {
		st.Status = Idle
	}
	c.publish(st)
	return art, nil
}

func (c *Capturer) publish(st *RunState) {
	snap := Snapshot{
		ID:           st.ID.String(),
		Status:       st.Status,
		InProgress:   st.InProgress,
		Frames:       st.Store.Len(),
		TotalFrames:  c.opts.TotalFrames,
		LastPosition: st.LastPosition,
	}
	if st.Artifact != nil {
		snap.Archive = st.Artifact.Path
	}
	if st.Err != nil {
		snap.Error = st.Err.Error()
	}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()
}

// Snapshot returns the state of the most recent run.
func (c *Capturer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
