package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"landscapes2/frames"
)

const defaultExportWorkers = 16

// ExportDir writes each frame as a loose PNG plus the manifest into dir,
// using up to workers concurrent writers. Payloads are kept, so ExportDir
// must run before Build.
func ExportDir(ctx context.Context, fr []*frames.Frame, dir, prefix string, frameRate, workers int) error {
	if dir == "" {
		return ErrNoOutputDir
	}
	if workers <= 0 {
		workers = defaultExportWorkers
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}

	if err := checkPayloads(fr); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range fr {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, f.Filename), f.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", f.Filename, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, ManifestName), []byte(Manifest(prefix, frameRate)), 0o644)
}
