package logstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storyeval/storyeval/pkg/models"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEntry(id, storyModel string) models.LogEntry {
	return models.LogEntry{
		ID:        id,
		Timestamp: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Models:    models.ModelInfo{StoryModel: storyModel, EvaluationModel: "judge"},
		Complexity: models.ComplexityInfo{
			PromptComplexity:     models.ComplexitySimple,
			EvaluationComplexity: models.ComplexityComplex,
		},
		Performance: models.Performance{TotalTime: models.Millis(1200)},
		TokenUsage:  models.NewTokenUsage(&models.Usage{PromptTokens: 10, CompletionTokens: 90, TotalTokens: 100}, nil),
		Evaluation:  models.Evaluation{OverallScore: models.Score(7)},
		StoryLength: 42,
		WordCount:   8,
	}
}

func TestAppendAndReadAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Append(ctx, sampleEntry("e1", "m1"))
	if err != nil {
		t.Fatal(err)
	}
	if id != "e1" {
		t.Errorf("expected id e1, got %s", id)
	}

	entries, err := s.ReadAll(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Models.StoryModel != "m1" {
		t.Errorf("expected story model m1, got %s", got.Models.StoryModel)
	}
	if got.Performance.TotalTime == nil || *got.Performance.TotalTime != 1200 {
		t.Errorf("expected total time 1200, got %v", got.Performance.TotalTime)
	}
	if got.Performance.TimeToFirstToken != nil {
		t.Errorf("expected unmeasured first-token time to stay absent")
	}
	if got.TokenUsage.Total.TotalTokens != 100 {
		t.Errorf("expected 100 total tokens, got %d", got.TokenUsage.Total.TotalTokens)
	}
	if !got.Timestamp.Equal(sampleEntry("", "").Timestamp) {
		t.Errorf("timestamp not preserved: %v", got.Timestamp)
	}
}

func TestReadAllOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, m := range []string{"m1", "m2", "m1", "m3"} {
		if _, err := s.Append(ctx, sampleEntry(fmt.Sprintf("e%d", i), m)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ReadAll(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range all {
		if e.ID != fmt.Sprintf("e%d", i) {
			t.Errorf("position %d: expected e%d, got %s", i, i, e.ID)
		}
	}

	m1, err := s.ReadAll(ctx, Filter{StoryModel: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m1) != 2 || m1[0].ID != "e0" || m1[1].ID != "e2" {
		t.Errorf("unexpected filtered entries: %+v", m1)
	}

	none, err := s.ReadAll(ctx, Filter{StoryModel: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestEvictionKeepsNewest(t *testing.T) {
	s := newTestStore(t, WithMaxEntries(5))
	ctx := context.Background()

	for i := range 12 {
		if _, err := s.Append(ctx, sampleEntry(fmt.Sprintf("e%02d", i), "m1")); err != nil {
			t.Fatal(err)
		}
		n, err := s.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n > 5 {
			t.Fatalf("store grew past capacity: %d", n)
		}
	}

	entries, err := s.ReadAll(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].ID != "e07" || entries[4].ID != "e11" {
		t.Errorf("expected e07..e11, got %s..%s", entries[0].ID, entries[4].ID)
	}
}

func TestDefaultCapacity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if s.MaxEntries() != DefaultMaxEntries {
		t.Fatalf("expected default cap %d, got %d", DefaultMaxEntries, s.MaxEntries())
	}
	for i := range DefaultMaxEntries + 1 {
		if _, err := s.Append(ctx, sampleEntry(fmt.Sprintf("e%04d", i), "m1")); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ReadAll(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != DefaultMaxEntries {
		t.Fatalf("expected %d entries, got %d", DefaultMaxEntries, len(entries))
	}
	if entries[0].ID != "e0001" {
		t.Errorf("expected oldest entry evicted, first is %s", entries[0].ID)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := newTestStore(t, WithMaxEntries(500))
	ctx := context.Background()

	var g errgroup.Group
	for i := range 64 {
		g.Go(func() error {
			_, err := s.Append(ctx, sampleEntry(fmt.Sprintf("c%03d", i), fmt.Sprintf("m%d", i%4)))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 64 {
		t.Errorf("expected 64 entries after concurrent appends, got %d", n)
	}
	seen := map[string]bool{}
	entries, _ := s.ReadAll(ctx, Filter{})
	for _, e := range entries {
		if seen[e.ID] {
			t.Errorf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestSnapshotAndRevision(t *testing.T) {
	s := newTestStore(t, WithMaxEntries(2))
	ctx := context.Background()

	rev, err := s.Revision(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rev != 0 {
		t.Errorf("expected revision 0 on empty store, got %d", rev)
	}

	for i := range 3 {
		_, _ = s.Append(ctx, sampleEntry(fmt.Sprintf("e%d", i), "m1"))
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Revision != 3 {
		t.Errorf("expected revision 3, got %d", snap.Revision)
	}
	if len(snap.Entries) != 2 {
		t.Errorf("expected 2 retained entries, got %d", len(snap.Entries))
	}

	rev, _ = s.Revision(ctx)
	if rev != snap.Revision {
		t.Errorf("revision mismatch: %d vs %d", rev, snap.Revision)
	}
}

func TestStoryModels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, m := range []string{"m2", "m1", "m2", ""} {
		_, _ = s.Append(ctx, sampleEntry(fmt.Sprintf("e%d", i), m))
	}

	ids, err := s.StoryModels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m2", "m1", models.UnknownModel}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestUnreadableRowsAreSkipped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Append(ctx, sampleEntry("good", "m1"))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_entries (id, story_model, created_at, body) VALUES ('bad', 'm1', ?, '{not json')`,
		time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}

	entries, err := s.ReadAll(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "good" {
		t.Errorf("expected only the readable entry, got %+v", entries)
	}
}

func TestMistypedFieldsAreDefaulted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	body := `{
		"id": "partial",
		"models": {"storyModel": "m1", "evaluationModel": 42},
		"performance": {"timeToFirstToken": 300, "totalTime": "fast"},
		"evaluation": {"overallScore": 6, "criteria": {"creativity": {"score": 5}}},
		"storyLength": "long",
		"wordCount": 9
	}`
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_entries (id, story_model, created_at, body) VALUES ('partial', 'm1', ?, ?)`,
		time.Now().UTC(), body)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := s.ReadAll(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the entry to be kept, got %d entries", len(entries))
	}
	e := entries[0]
	if e.ID != "partial" || e.Models.StoryModel != "m1" || e.Models.EvaluationModel != "" {
		t.Errorf("models = %+v, want story model kept and judge defaulted", e.Models)
	}
	if e.Performance.TimeToFirstToken == nil || *e.Performance.TimeToFirstToken != 300 {
		t.Errorf("timeToFirstToken = %v, want 300", e.Performance.TimeToFirstToken)
	}
	if e.Performance.TotalTime != nil {
		t.Errorf("totalTime = %v, want absent", *e.Performance.TotalTime)
	}
	if e.StoryLength != 0 || e.WordCount != 9 {
		t.Errorf("storyLength = %d, wordCount = %d, want 0 and 9", e.StoryLength, e.WordCount)
	}
	if !e.Evaluation.Succeeded() {
		t.Error("evaluation should survive a mistyped sibling field")
	}
}

func TestDecodeEntryReportsDefaultedFields(t *testing.T) {
	_, bad, err := decodeEntry([]byte(`{"id": "x", "performance": {"totalTime": "fast"}, "wordCount": "nine"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"performance.totalTime": true, "wordCount": true}
	if len(bad) != len(want) {
		t.Fatalf("bad fields = %v, want %v", bad, want)
	}
	for _, f := range bad {
		if !want[f] {
			t.Errorf("unexpected bad field %q", f)
		}
	}

	if _, _, err := decodeEntry([]byte(`[1, 2]`)); err == nil {
		t.Error("expected error for a non-object body")
	}
}

func TestAppendRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append(context.Background(), sampleEntry("", "m1")); err == nil {
		t.Error("expected error for entry without id")
	}
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	s := newTestStore(t)
	_ = s.Close()

	_, err := s.ReadAll(context.Background(), Filter{})
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
	_, err = s.Append(context.Background(), sampleEntry("e1", "m1"))
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = s1.Append(context.Background(), sampleEntry("e1", "m1"))
	_ = s1.Close()

	s2, err := New(dbPath)
	if err != nil {
		t.Fatal("second New() failed:", err)
	}
	defer s2.Close()

	n, err := s2.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected entry to survive reopen, got %d", n)
	}
}
