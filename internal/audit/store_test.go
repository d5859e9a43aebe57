// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestRecordAndListChronological(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Kind: KindPolicyAction, Usage: "media", Behavior: "mute"},
		{Kind: KindGain, Usage: "media", GainDb: -20},
		{Kind: KindStreamCount, Usage: "media", Count: 2},
	}
	for i := range entries {
		entries[i].Timestamp = time.Now()
		if err := s.Record(ctx, entries[i]); err != nil {
			t.Fatalf("Record[%d]: %v", i, err)
		}
	}

	got, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("List returned %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Kind != e.Kind || got[i].Usage != e.Usage {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], e)
		}
	}
}

func TestListFilterByKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, Entry{Kind: KindGain, Usage: "media", Timestamp: time.Now()})
	_ = s.Record(ctx, Entry{Kind: KindPolicyAction, Usage: "media", Timestamp: time.Now()})
	_ = s.Record(ctx, Entry{Kind: KindGain, Usage: "interruption", Timestamp: time.Now()})

	got, err := s.List(ctx, Filter{Kind: KindGain})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Kind != KindGain {
			t.Errorf("entry kind = %s, want %s", e.Kind, KindGain)
		}
	}
}

func TestListFilterByUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, Entry{Kind: KindGain, Usage: "media", Timestamp: time.Now()})
	_ = s.Record(ctx, Entry{Kind: KindGain, Usage: "interruption", Timestamp: time.Now()})

	got, err := s.List(ctx, Filter{Usage: "interruption"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Usage != "interruption" {
		t.Fatalf("got %+v, want single interruption entry", got)
	}
}

func TestListFilterBySince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, Entry{Kind: KindGain, Usage: "media", Timestamp: time.Now().Add(-time.Hour)})
	cutoff := time.Now()
	_ = s.Record(ctx, Entry{Kind: KindGain, Usage: "media", Timestamp: time.Now()})

	got, err := s.List(ctx, Filter{Since: cutoff})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}

func TestCountMatchesListLength(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = s.Record(ctx, Entry{Kind: KindStreamCount, Usage: "media", Count: i, Timestamp: time.Now()})
	}

	n, err := s.Count(ctx, Filter{Kind: KindStreamCount})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Fatalf("Count = %d, want 5", n)
	}
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Record(context.Background(), Entry{Kind: KindGain, Usage: "media", Timestamp: time.Now()})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List after reopen: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries after reopen, want 1", len(got))
	}
}
