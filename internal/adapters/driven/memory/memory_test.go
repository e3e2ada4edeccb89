package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

func newDoc(id, project string, gen int64, label string) *domain.Document {
	return &domain.Document{ID: id, ProjectID: project, Generation: gen, Label: label, Metadata: map[string]string{"k": "v"}}
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()

	require.NoError(t, s.SaveBatch(ctx, []*domain.Document{
		newDoc("d1", "p", 1, "src/b.ts"),
		newDoc("d2", "p", 1, "src/a.ts"),
		newDoc("d3", "p", 2, "src/c.ts"),
		newDoc("d4", "other", 1, "src/a.ts"),
	}))

	t.Run("get returns copy", func(t *testing.T) {
		doc, err := s.Get(ctx, "d1")
		require.NoError(t, err)
		doc.Metadata["k"] = "changed"

		again, err := s.Get(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "v", again.Metadata["k"])
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("get many skips unknown and keeps order", func(t *testing.T) {
		docs, err := s.GetMany(ctx, []string{"d2", "missing", "d1"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "d2", docs[0].ID)
		assert.Equal(t, "d1", docs[1].ID)
	})

	t.Run("list is generation scoped and ordered by label", func(t *testing.T) {
		docs, err := s.ListByProject(ctx, "p", 1, 10, 0)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "src/a.ts", docs[0].Label)

		page, err := s.ListByProject(ctx, "p", 1, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "src/b.ts", page[0].Label)

		empty, err := s.ListByProject(ctx, "p", 1, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountByProject(ctx, "p", 1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("prune keeps one generation", func(t *testing.T) {
		require.NoError(t, s.PruneGenerations(ctx, "p", 2))
		n, _ := s.CountByProject(ctx, "p", 1)
		assert.Equal(t, 0, n)
		n, _ = s.CountByProject(ctx, "p", 2)
		assert.Equal(t, 1, n)
		n, _ = s.CountByProject(ctx, "other", 1)
		assert.Equal(t, 1, n)
	})

	t.Run("delete by project", func(t *testing.T) {
		require.NoError(t, s.DeleteByProject(ctx, "p"))
		n, _ := s.CountByProject(ctx, "p", 2)
		assert.Equal(t, 0, n)
	})
}

func TestVectorStore_OrderedBySeq(t *testing.T) {
	ctx := context.Background()
	s := NewVectorStore()

	require.NoError(t, s.PutBatch(ctx, []*domain.VectorRecord{
		{DocumentID: "c", ProjectID: "p", Generation: 1, Values: []float32{1}, Seq: 2},
		{DocumentID: "a", ProjectID: "p", Generation: 1, Values: []float32{1}, Seq: 0},
		{DocumentID: "b", ProjectID: "p", Generation: 1, Values: []float32{1}, Seq: 1},
		{DocumentID: "x", ProjectID: "p", Generation: 2, Values: []float32{1}, Seq: 0},
	}))

	recs, err := s.ListByProject(ctx, "p", 1)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{recs[0].DocumentID, recs[1].DocumentID, recs[2].DocumentID})

	require.NoError(t, s.DeleteByDocument(ctx, "b"))
	require.NoError(t, s.DeleteGeneration(ctx, "p", 2))

	recs, _ = s.ListByProject(ctx, "p", 1)
	assert.Len(t, recs, 2)
	recs, _ = s.ListByProject(ctx, "p", 2)
	assert.Empty(t, recs)
}

func TestProjectStore_Generations(t *testing.T) {
	ctx := context.Background()
	s := NewProjectStore()

	_, err := s.Get(ctx, "p")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	g1, err := s.BeginGeneration(ctx, "p", "https://github.com/a/b")
	require.NoError(t, err)
	g2, err := s.BeginGeneration(ctx, "p", "https://github.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g1)
	assert.Equal(t, int64(2), g2)

	state, err := s.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.ActiveGeneration)

	require.NoError(t, s.Activate(ctx, "p", g2, 768))
	state, _ = s.Get(ctx, "p")
	assert.Equal(t, int64(2), state.ActiveGeneration)
	assert.Equal(t, 768, state.Dimension)
	assert.NotNil(t, state.LastIngestAt)

	assert.ErrorIs(t, s.Activate(ctx, "p", 9, 768), domain.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "p"))
	_, err = s.Get(ctx, "p")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_Lifecycle(t *testing.T) {
	ctx := context.Background()
	q := NewTaskQueue()

	task := domain.NewTask(domain.TaskTypeIngestProject, "p", nil)
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)

	// Claimed tasks are not handed out twice.
	none, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, q.Nack(ctx, task.ID, "temporary"))
	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.True(t, stored.ScheduledFor.After(time.Now()))

	require.NoError(t, q.Fail(ctx, task.ID, "fatal"))
	stored, _ = q.GetTask(ctx, task.ID)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "fatal", stored.Error)

	_, err = q.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_AckAndClose(t *testing.T) {
	ctx := context.Background()
	q := NewTaskQueue()

	task := domain.NewTask(domain.TaskTypeIngestProject, "p", nil)
	require.NoError(t, q.Enqueue(ctx, task))
	_, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, task.ID))

	stored, _ := q.GetTask(ctx, task.ID)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)

	require.NoError(t, q.Ping(ctx))
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Ping(ctx), domain.ErrServiceUnavailable)
	assert.ErrorIs(t, q.Enqueue(ctx, task), domain.ErrServiceUnavailable)
}

func TestTaskQueue_DequeueRespectsContext(t *testing.T) {
	q := NewTaskQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.DequeueWithTimeout(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	l := NewLock()

	ok, err := l.Acquire(ctx, "ingest:p", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "ingest:p", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Extend(ctx, "ingest:p", time.Minute))
	require.NoError(t, l.Release(ctx, "ingest:p"))
	assert.Error(t, l.Extend(ctx, "ingest:p", time.Minute))

	ok, _ = l.Acquire(ctx, "short", time.Millisecond)
	assert.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	ok, _ = l.Acquire(ctx, "short", time.Minute)
	assert.True(t, ok, "expired lock should be acquirable")
}
