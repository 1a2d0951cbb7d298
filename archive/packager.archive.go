package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"landscapes2/frames"
)

var (
	ErrNoOutputDir   = errors.New("archive output directory is not set")
	ErrFrameReleased = errors.New("frame payload already released")
)

const progressEvery = 100

// Artifact describes a written archive.
type Artifact struct {
	Name   string
	Path   string
	Frames int
	Size   int64
}

type Packager struct {
	dir       string
	frameRate int
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Packager)

// WithClock replaces time.Now for archive naming and entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Packager) {
		p.now = now
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Packager) {
		p.log = log
	}
}

func NewPackager(dir string, frameRate int, opts ...Option) *Packager {
	p := &Packager{
		dir:       dir,
		frameRate: frameRate,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ArchiveName is prefix_frames_<unix ms>.zip.
func ArchiveName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_frames_%d.zip", prefix, at.UnixMilli())
}

// Build writes frames in the given order plus the ffmpeg manifest into one
// zip archive. Each frame's payload is released as soon as it is written.
// With no frames Build returns a nil Artifact and no error. Frames whose
// payload was released by an earlier, failed Build are refused.
func (p *Packager) Build(fr []*frames.Frame, prefix string) (*Artifact, error) {
	if len(fr) == 0 {
		p.log.Info().Msg("no frames to package")
		return nil, nil
	}
	if p.dir == "" {
		return nil, ErrNoOutputDir
	}
	if err := checkPayloads(fr); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	now := p.now()
	name := ArchiveName(prefix, now)
	p.log.Info().Int("frames", len(fr)).Str("archive", name).Msg("creating zip")

	tmp, err := os.CreateTemp(p.dir, ".partial-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = p.write(tmp, fr, prefix, now); err != nil {
		return nil, err
	}
	if err = tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	finalPath := filepath.Join(p.dir, name)
	if err = os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("rename archive: %w", err)
	}

	art := &Artifact{Name: name, Path: finalPath, Frames: len(fr), Size: info.Size()}
	p.log.Info().Int("frames", art.Frames).Int64("bytes", art.Size).Str("path", art.Path).Msg("archive written")
	return art, nil
}

func (p *Packager) write(w io.Writer, fr []*frames.Frame, prefix string, now time.Time) error {
	zw := zip.NewWriter(w)

	for i, f := range fr {
		// PNG data is already deflated.
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Filename,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", f.Filename, err)
		}
		if _, err := entry.Write(f.Data); err != nil {
			return fmt.Errorf("write %s: %w", f.Filename, err)
		}
		f.Release()

		if (i+1)%progressEvery == 0 {
			p.log.Debug().Msgf("Added %d / %d frames...", i+1, len(fr))
		}
	}

	manifest, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestName,
		Method:   zip.Deflate,
		Modified: now,
	})
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(manifest, Manifest(prefix, p.frameRate)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

func checkPayloads(fr []*frames.Frame) error {
	for _, f := range fr {
		if f.Released() {
			return fmt.Errorf("%w: frame %d", ErrFrameReleased, f.Index)
		}
	}
	return nil
}
