package midiparser

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reparses path whenever it changes and hands the new song to
// onChange, until ctx is cancelled. The parent directory is watched so
// editors that replace the file on save are still seen.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Song)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	log.Info().Str("path", abs).Msg("watcher: started")

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			log.Info().Msg("watcher: stopped")
			return nil

		case <-reloadCh:
			song, err := LoadFile(abs)
			if err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("watcher: reload failed")
				continue
			}
			log.Info().Str("path", abs).Int("tracks", len(song.Tracks)).Msg("watcher: reloaded")
			onChange(song)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(reloadDebounce)
				reloadCh = reloadTimer.C
			} else {
				reloadTimer.Reset(reloadDebounce)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(watchErr).Msg("watcher: error")
		}
	}
}
