package cache

import (
	"testing"
	"time"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
)

func completeSnapshot(fetchedAt time.Time) catalog.Snapshot {
	return catalog.Snapshot{
		Store:     &catalog.Store{ID: "s1", Name: "YSG"},
		Products:  []catalog.Product{{ID: "p1", Title: "Tea"}},
		FetchedAt: fetchedAt,
	}
}

func TestEntry_IsFresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 60 * time.Second

	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{
			name:  "nil entry",
			entry: nil,
			want:  false,
		},
		{
			name:  "just fetched",
			entry: &Entry{Snapshot: completeSnapshot(now)},
			want:  true,
		},
		{
			name:  "inside window",
			entry: &Entry{Snapshot: completeSnapshot(now.Add(-59 * time.Second))},
			want:  true,
		},
		{
			name:  "window boundary",
			entry: &Entry{Snapshot: completeSnapshot(now.Add(-60 * time.Second))},
			want:  false,
		},
		{
			name:  "stale",
			entry: &Entry{Snapshot: completeSnapshot(now.Add(-5 * time.Minute))},
			want:  false,
		},
		{
			name:  "incomplete snapshot",
			entry: &Entry{Snapshot: catalog.Snapshot{Store: &catalog.Store{}, FetchedAt: now}},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsFresh(now, ttl); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 60 * time.Second

	tests := []struct {
		name      string
		fetchedAt time.Time
		want      time.Duration
	}{
		{
			name:      "full window remaining",
			fetchedAt: now,
			want:      60 * time.Second,
		},
		{
			name:      "partially used",
			fetchedAt: now.Add(-15 * time.Second),
			want:      45 * time.Second,
		},
		{
			name:      "already stale",
			fetchedAt: now.Add(-2 * time.Minute),
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{Snapshot: completeSnapshot(tt.fetchedAt)}
			if got := entry.TTL(now, ttl); got != tt.want {
				t.Errorf("TTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Age(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{Snapshot: completeSnapshot(now.Add(-30 * time.Second))}

	if got := entry.Age(now); got != 30*time.Second {
		t.Errorf("Age() = %v, want 30s", got)
	}
}
