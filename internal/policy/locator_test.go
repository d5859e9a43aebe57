// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeInstaller records every *Store it is handed, standing in for
// *admin.Dispatcher without importing internal/admin (which itself
// imports internal/policy).
type fakeInstaller struct {
	mu    sync.Mutex
	calls []*Store
}

func (f *fakeInstaller) SetInteractionsFromPolicy(fresh *Store) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fresh)
}

func (f *fakeInstaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeInstaller) last() *Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func TestLoadOnceInstallsThroughInstallerNotDirectly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio_policy.json")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	installer := &fakeInstaller{}
	loc := NewLocator(installer, []string{path}, zerolog.Nop())

	n, err := loc.LoadOnce()
	if err != nil {
		t.Fatalf("LoadOnce: unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("LoadOnce: n = %d, want 2", n)
	}
	if installer.count() != 1 {
		t.Fatalf("LoadOnce: installer called %d times, want 1", installer.count())
	}
	if installer.last() == nil {
		t.Fatal("LoadOnce: installer received a nil store")
	}
}

func TestLoadOnceWithNoDocumentNeverCallsInstaller(t *testing.T) {
	installer := &fakeInstaller{}
	loc := NewLocator(installer, []string{filepath.Join(t.TempDir(), "missing.json")}, zerolog.Nop())

	n, err := loc.LoadOnce()
	if err != nil {
		t.Fatalf("LoadOnce: unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("LoadOnce: n = %d, want 0", n)
	}
	if installer.count() != 0 {
		t.Fatalf("LoadOnce: installer called %d times, want 0", installer.count())
	}
}

func TestWatchReloadsThroughInstallerOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio_policy.json")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	installer := &fakeInstaller{}
	loc := NewLocator(installer, []string{path}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := loc.Watch(ctx); err != nil {
		t.Fatalf("Watch: unexpected error: %v", err)
	}
	defer loc.Close()

	if installer.count() != 1 {
		t.Fatalf("Watch: installer called %d times after initial load, want 1", installer.count())
	}

	// Rewrite with a different, still-valid document; the watcher should
	// pick up the write and install again through the same installer.
	secondDoc := `{
  "audio_policy_rules": [
    { "active": { "render_usage": "COMMUNICATION" }, "affected": { "render_usage": "MEDIA" }, "behavior": "MUTE" }
  ]
}`
	if err := os.WriteFile(path, []byte(secondDoc), 0o644); err != nil {
		t.Fatalf("rewrite policy file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if installer.count() >= 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if installer.count() < 2 {
		t.Fatalf("Watch: installer called %d times after reload, want >= 2", installer.count())
	}
}
