package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lemonhq/roomchat/chat/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []session.FeedEntry{
		{Kind: session.EntryNotice, Text: "Bob joined", Timestamp: base},
		{Kind: session.EntryChat, Author: "cid2", AuthorName: "Bob", Text: "hello", Timestamp: base.Add(time.Second)},
		{Kind: session.EntryChat, Author: "cid2", AuthorName: "Bob", Text: "anyone here?", Timestamp: base.Add(2 * time.Second)},
	}
	for _, entry := range entries {
		if err := store.Append(entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(got))
	}
	for i, entry := range got {
		if entry.Text != entries[i].Text {
			t.Errorf("Entry %d text = %q, want %q (chronological order)", i, entry.Text, entries[i].Text)
		}
		if entry.Kind != entries[i].Kind {
			t.Errorf("Entry %d kind = %q, want %q", i, entry.Kind, entries[i].Kind)
		}
	}
	if got[1].Author != "cid2" || got[1].AuthorName != "Bob" {
		t.Errorf("Entry 1 author = %q/%q, want cid2/Bob", got[1].Author, got[1].AuthorName)
	}
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		err := store.Append(session.FeedEntry{
			Kind:      session.EntryChat,
			Text:      string(rune('a' + i)),
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries, want 2", len(got))
	}
	// The newest two, oldest first.
	if got[0].Text != "d" || got[1].Text != "e" {
		t.Errorf("Recent(2) = [%q %q], want [d e]", got[0].Text, got[1].Text)
	}
}

func TestAppendZeroTimestamp(t *testing.T) {
	store := openTestStore(t)

	if err := store.Append(session.FeedEntry{Kind: session.EntryChat, Text: "hi"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent returned %d entries, want 1", len(got))
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Zero timestamps must be replaced with the local clock")
	}
}

func TestRecentEmpty(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent on an empty store returned %d entries", len(got))
	}
}
