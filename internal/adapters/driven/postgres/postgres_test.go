package postgres

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ispasdani/k2ide/internal/chunker"
	"github.com/ispasdani/k2ide/internal/core/domain"
)

func TestHashLockName(t *testing.T) {
	a := hashLockName("ingest:p1")
	if a != hashLockName("ingest:p1") {
		t.Error("expected stable hash")
	}
	if a == hashLockName("ingest:p2") {
		t.Error("expected different names to hash differently")
	}
}

func TestOrderByIDs(t *testing.T) {
	docs := []*domain.Document{{ID: "c"}, {ID: "a"}, {ID: "b"}}

	got := orderByIDs(docs, []string{"b", "missing", "a", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d documents, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestDocumentArgs_ContentBoundAsBytes(t *testing.T) {
	doc := &domain.Document{ID: "d1", Content: "ab\xe2\x82", Metadata: map[string]string{}}

	args, err := documentArgs(doc)
	if err != nil {
		t.Fatalf("documentArgs: %v", err)
	}
	if len(args) != 10 {
		t.Fatalf("expected 10 arguments, got %d", len(args))
	}
	content, ok := args[7].([]byte)
	if !ok {
		t.Fatalf("expected content as []byte, got %T", args[7])
	}
	if !bytes.Equal(content, []byte("ab\xe2\x82")) {
		t.Errorf("content changed: %q", content)
	}
}

// testDB connects to K2IDE_TEST_DATABASE_URL, a Postgres with pgvector installed.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("K2IDE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("K2IDE_TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStores_GenerationLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	projectID := "it-" + domain.GenerateID()

	docs := NewDocumentStore(db)
	vectors := NewVectorStore(db)
	projects := NewProjectStore(db)
	t.Cleanup(func() {
		_ = vectors.DeleteByProject(ctx, projectID)
		_ = docs.DeleteByProject(ctx, projectID)
		_ = projects.Delete(ctx, projectID)
	})

	if _, err := projects.Get(ctx, projectID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	gen1, err := projects.BeginGeneration(ctx, projectID, "https://github.com/acme/repo")
	if err != nil {
		t.Fatalf("begin generation: %v", err)
	}
	gen2, err := projects.BeginGeneration(ctx, projectID, "ignored")
	if err != nil {
		t.Fatalf("begin generation: %v", err)
	}
	if gen2 != gen1+1 {
		t.Errorf("expected increasing generations, got %d then %d", gen1, gen2)
	}

	chunk := domain.Chunk{SourcePath: "src/app.ts", Index: 1, Total: 1, Content: []byte("export {}")}
	doc := domain.NewDocument(projectID, gen2, "https://github.com/acme/repo", chunk)
	if err := docs.SaveBatch(ctx, []*domain.Document{doc}); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec := &domain.VectorRecord{DocumentID: doc.ID, ProjectID: projectID, Generation: gen2, Values: []float32{0.1, 0.2, 0.3}}
	if err := vectors.PutBatch(ctx, []*domain.VectorRecord{rec}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := projects.Activate(ctx, projectID, gen2, 3); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := projects.Activate(ctx, projectID, gen2+5, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown generation, got %v", err)
	}

	state, err := projects.Get(ctx, projectID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.ActiveGeneration != gen2 || state.Dimension != 3 || state.LastIngestAt == nil {
		t.Errorf("unexpected state %+v", state)
	}
	if state.RepoURL != "https://github.com/acme/repo" {
		t.Errorf("expected first repo URL to stick, got %s", state.RepoURL)
	}

	got, err := docs.GetMany(ctx, []string{"missing", doc.ID})
	if err != nil || len(got) != 1 || got[0].Metadata[domain.MetadataSource] != "https://github.com/acme/repo" {
		t.Errorf("unexpected GetMany result %v, %v", got, err)
	}
	if len(got) == 1 {
		if _, ok := got[0].Metadata[domain.MetadataChunk]; ok {
			t.Errorf("unsplit file should carry no chunk metadata: %v", got[0].Metadata)
		}
	}

	records, err := vectors.ListByProject(ctx, projectID, gen2)
	if err != nil || len(records) != 1 || len(records[0].Values) != 3 {
		t.Errorf("unexpected vectors %v, %v", records, err)
	}

	if err := docs.PruneGenerations(ctx, projectID, gen1); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n, _ := docs.CountByProject(ctx, projectID, gen2); n != 0 {
		t.Errorf("expected pruned generation to be empty, got %d", n)
	}
}

func TestDocumentStore_ByteExactChunksRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	projectID := "it-" + domain.GenerateID()
	docs := NewDocumentStore(db)
	t.Cleanup(func() { _ = docs.DeleteByProject(ctx, projectID) })

	// "€" is three bytes; a 4-byte cap splits it across both chunks.
	source := []byte("abc€def")
	c := chunker.New(chunker.Config{MaxChunkBytes: 4, Mode: chunker.ModeByteExact})
	chunks := c.Split("src/price.ts", source)
	if len(chunks) < 2 {
		t.Fatalf("expected a split, got %d chunks", len(chunks))
	}

	var saved []*domain.Document
	for _, chunk := range chunks {
		saved = append(saved, domain.NewDocument(projectID, 1, "https://github.com/acme/repo", chunk))
	}
	if err := docs.SaveBatch(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	var joined []byte
	for _, want := range saved {
		got, err := docs.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("get %s: %v", want.Label, err)
		}
		if got.Content != want.Content {
			t.Errorf("%s: content %q, want %q", want.Label, got.Content, want.Content)
		}
		joined = append(joined, got.Content...)
	}
	if !bytes.Equal(joined, source) {
		t.Errorf("reassembled %q, want %q", joined, source)
	}
}

func TestAdvisoryLock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	name := "ingest:" + domain.GenerateID()

	first := NewAdvisoryLock(db)
	second := NewAdvisoryLock(db)

	ok, err := first.Acquire(ctx, name, 0)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got %v, %v", ok, err)
	}
	if ok, _ := second.Acquire(ctx, name, 0); ok {
		t.Error("expected second instance to be refused")
	}
	if err := first.Extend(ctx, name, 0); err != nil {
		t.Errorf("extend: %v", err)
	}
	if err := second.Extend(ctx, name, 0); err == nil {
		t.Error("expected extend without the lock to fail")
	}

	if err := first.Release(ctx, name); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx, name, 0)
	if err != nil || !ok {
		t.Errorf("expected acquire after release, got %v, %v", ok, err)
	}
	_ = second.Release(ctx, name)
}
