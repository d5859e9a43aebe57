// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultSearchPaths are the two on-disk locations checked in order. The
// Locator uses the first one that exists, so when both are present the
// /config/data document is loaded and the /config/board one is not read.
var DefaultSearchPaths = []string{
	"/config/data/audio_policy.json",
	"/config/board/audio_policy.json",
}

// Installer receives a freshly parsed, standalone *Store and installs it.
// *admin.Dispatcher satisfies this (its SetInteractionsFromPolicy posts
// the install through the single dispatcher goroutine, triggering the
// same reset-then-replay-then-recompute sequence any other policy
// mutation gets) — Locator never talks to a live Store directly, so a
// filesystem-triggered reload can never race a dispatcher-owned mutation
// or skip the recompute spec.md §4.3 requires.
type Installer interface {
	SetInteractionsFromPolicy(fresh *Store)
}

// Locator finds and hot-reloads a policy document from the first existing
// path in SearchPaths, parsing every successful reparse into a standalone
// Store and handing it to Installer.
type Locator struct {
	SearchPaths []string
	Installer   Installer
	Log         zerolog.Logger

	watcher *fsnotify.Watcher
	path    string
}

// NewLocator builds a Locator that installs through installer, using
// paths and falling back to DefaultSearchPaths when paths is empty.
func NewLocator(installer Installer, paths []string, log zerolog.Logger) *Locator {
	if len(paths) == 0 {
		paths = DefaultSearchPaths
	}
	return &Locator{SearchPaths: paths, Installer: installer, Log: log.With().Str("component", "policy.locator").Logger()}
}

// resolvePath returns the first path in SearchPaths that exists on disk,
// or "" if none do — an entirely absent policy document is not an error,
// the engine simply runs with every interaction defaulted to NONE.
func (l *Locator) resolvePath() string {
	for _, p := range l.SearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadOnce resolves the active path (if any), parses it, and hands the
// result to Installer, without starting a watch. Returns the number of
// rules parsed, or 0 with a nil error if no policy document is present.
func (l *Locator) LoadOnce() (int, error) {
	path := l.resolvePath()
	if path == "" {
		l.Log.Info().Msg("no policy document found in search paths, running with no rules")
		return 0, nil
	}
	l.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("policy: read %s: %w", path, err)
	}
	fresh, n, err := Load(data)
	if err != nil {
		return 0, fmt.Errorf("policy: load %s: %w", path, err)
	}
	l.Installer.SetInteractionsFromPolicy(fresh)
	l.Log.Info().Str("path", path).Int("rules", n).Msg("policy document installed")
	return n, nil
}

// Watch starts an fsnotify watch on the resolved policy file itself
// and reinstalls the document on every write/create event, until ctx is
// cancelled. A reparse failure is logged and the previously installed
// rules are left in place — a broken edit never blanks the running
// policy.
func (l *Locator) Watch(ctx context.Context) error {
	if l.path == "" {
		if _, err := l.LoadOnce(); err != nil {
			return err
		}
	}
	if l.path == "" {
		// Still nothing on disk; there is nothing to watch.
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: new watcher: %w", err)
	}
	l.watcher = w
	if err := w.Add(l.path); err != nil {
		w.Close()
		return fmt.Errorf("policy: watch %s: %w", l.path, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					l.reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Log.Warn().Err(err).Msg("policy watcher error")
			}
		}
	}()
	return nil
}

func (l *Locator) reload() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		l.Log.Warn().Err(err).Str("path", l.path).Msg("policy reload: read failed, keeping current rules")
		return
	}
	fresh, n, err := Load(data)
	if err != nil {
		l.Log.Warn().Err(err).Str("path", l.path).Msg("policy reload: parse failed, keeping current rules")
		return
	}
	l.Installer.SetInteractionsFromPolicy(fresh)
	l.Log.Info().Str("path", l.path).Int("rules", n).Msg("policy document reloaded")
}

// Close stops the underlying watcher, if any.
func (l *Locator) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// Serve implements suture.Service: it starts Watch and blocks until ctx
// is cancelled, then closes the underlying watcher.
func (l *Locator) Serve(ctx context.Context) error {
	if err := l.Watch(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	_ = l.Close()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logging.
func (l *Locator) String() string { return "policy.locator" }
