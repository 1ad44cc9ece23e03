package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/knowledgebot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	err     error
	calls   atomic.Int32
	deletes atomic.Int32
	result  core.QueryResult
}

func (f *fakeClient) ProcessFile(context.Context, string, string, string, string) error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeClient) ProcessQA(context.Context, string, string, string, string) error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeClient) ProcessArticle(context.Context, string, string, string, string) error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeClient) DeleteEmbeddings(context.Context, string, string) error {
	f.deletes.Add(1)
	return f.err
}

func (f *fakeClient) Query(context.Context, string, string, string) (core.QueryResult, error) {
	return f.result, f.err
}

type memoryStatuses struct {
	mu      sync.Mutex
	updates map[string][]core.SourceStatus
	err     error
}

func newMemoryStatuses() *memoryStatuses {
	return &memoryStatuses{updates: map[string][]core.SourceStatus{}}
}

func (m *memoryStatuses) UpdateStatus(_ context.Context, sourceID string, status core.SourceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updates[sourceID] = append(m.updates[sourceID], status)
	return nil
}

func (m *memoryStatuses) get(sourceID string) []core.SourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[sourceID]
}

func newTestOrchestrator(t *testing.T, client PipelineClient, statuses StatusStore, qopts ...QueueOption) *Orchestrator {
	t.Helper()
	q, err := NewQueue(qopts...)
	require.NoError(t, err)
	o, err := New(client, q, statuses)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func TestDispatch_Completed(t *testing.T) {
	client := &fakeClient{}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses)
	ctx := context.Background()

	assert.Equal(t, core.StatusProcessing, o.DispatchFile(ctx, "ws", "file-1", "/a.pdf", "a.pdf"))
	assert.Equal(t, core.StatusProcessing, o.DispatchQA(ctx, "ws", "qa-1", "q", "a"))
	assert.Equal(t, core.StatusProcessing, o.DispatchArticle(ctx, "ws", "art-1", "t", "c"))
	o.Wait()

	assert.Equal(t, int32(3), client.calls.Load())
	for _, id := range []string{"file-1", "qa-1", "art-1"} {
		assert.Equal(t, []core.SourceStatus{core.StatusCompleted}, statuses.get(id), id)
	}
}

func TestDispatch_FailureMarksFailed(t *testing.T) {
	client := &fakeClient{err: &PipelineRejectedError{StatusCode: 500, Detail: "boom"}}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses)

	o.DispatchQA(context.Background(), "ws", "qa-1", "q", "a")
	o.Wait()

	assert.Equal(t, []core.SourceStatus{core.StatusFailed}, statuses.get("qa-1"))
}

func TestDispatch_ConnectionErrorFailsWithoutRetry(t *testing.T) {
	c, err := NewClient(unreachableURL(t))
	require.NoError(t, err)

	var attempts atomic.Int32
	counting := &countingClient{PipelineClient: c, attempts: &attempts}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, counting, statuses)

	status := o.DispatchFile(context.Background(), "ws", "file-1", "/a.pdf", "a.pdf")
	o.Wait()

	assert.Equal(t, core.StatusProcessing, status)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, []core.SourceStatus{core.StatusFailed}, statuses.get("file-1"))
}

type countingClient struct {
	PipelineClient
	attempts *atomic.Int32
}

func (c *countingClient) ProcessFile(ctx context.Context, ws, src, path, filename string) error {
	c.attempts.Add(1)
	return c.PipelineClient.ProcessFile(ctx, ws, src, path, filename)
}

func TestDispatch_MalformedSuccessMarksFailed(t *testing.T) {
	srv, _ := newPipelineServer(t, http.StatusOK, `<html>proxy page</html>`)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, c, statuses)

	o.DispatchQA(context.Background(), "ws", "qa-1", "q", "a")
	o.Wait()

	assert.Equal(t, []core.SourceStatus{core.StatusFailed}, statuses.get("qa-1"))
}

// gatedClient blocks ingestion calls until release is closed.
type gatedClient struct {
	fakeClient
	release chan struct{}
}

func (g *gatedClient) ProcessQA(ctx context.Context, ws, src, q, a string) error {
	<-g.release
	return g.fakeClient.ProcessQA(ctx, ws, src, q, a)
}

func TestDispatch_ReturnsWhileWorkersBusy(t *testing.T) {
	client := &gatedClient{release: make(chan struct{})}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses, WithWorkers(1))
	ctx := context.Background()

	assert.Equal(t, core.StatusProcessing, o.DispatchQA(ctx, "ws", "qa-1", "q", "a"))

	dispatched := make(chan core.SourceStatus, 1)
	go func() { dispatched <- o.DispatchQA(ctx, "ws", "qa-2", "q", "a") }()
	select {
	case status := <-dispatched:
		assert.Equal(t, core.StatusProcessing, status)
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked while the only worker was busy")
	}

	close(client.release)
	o.Wait()
	assert.Equal(t, []core.SourceStatus{core.StatusCompleted}, statuses.get("qa-1"))
	assert.Equal(t, []core.SourceStatus{core.StatusCompleted}, statuses.get("qa-2"))
}

// orderClient records the pipeline calls it receives. Deletes are slow.
type orderClient struct {
	fakeClient
	mu    sync.Mutex
	calls []string
}

func (c *orderClient) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *orderClient) DeleteEmbeddings(context.Context, string, string) error {
	time.Sleep(50 * time.Millisecond)
	c.record("delete")
	return nil
}

func (c *orderClient) ProcessQA(context.Context, string, string, string, string) error {
	c.record("qa")
	return nil
}

func TestDispatch_SameSourceKeepsOrder(t *testing.T) {
	client := &orderClient{}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses)

	o.DispatchDelete("ws", "qa-1")
	o.DispatchQA(context.Background(), "ws", "qa-1", "q", "a")
	o.Wait()

	assert.Equal(t, []string{"delete", "qa"}, client.calls)
	assert.Equal(t, []core.SourceStatus{core.StatusCompleted}, statuses.get("qa-1"))
}

func TestDispatch_RetryPolicyApplies(t *testing.T) {
	client := &fakeClient{err: errors.New("transient")}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	o.DispatchArticle(context.Background(), "ws", "art-1", "t", "c")
	o.Wait()

	assert.Equal(t, int32(3), client.calls.Load())
	assert.Equal(t, []core.SourceStatus{core.StatusFailed}, statuses.get("art-1"))
}

func TestDispatch_DetachedFromRequestContext(t *testing.T) {
	client := &fakeClient{}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses)

	ctx, cancel := context.WithCancel(context.Background())
	o.DispatchQA(ctx, "ws", "qa-1", "q", "a")
	cancel()
	o.Wait()

	assert.Equal(t, []core.SourceStatus{core.StatusCompleted}, statuses.get("qa-1"))
}

func TestDispatch_ClosedQueueMarksFailed(t *testing.T) {
	statuses := newMemoryStatuses()
	q, err := NewQueue()
	require.NoError(t, err)
	o, err := New(&fakeClient{}, q, statuses)
	require.NoError(t, err)
	o.Close()

	status := o.DispatchQA(context.Background(), "ws", "qa-1", "q", "a")

	assert.Equal(t, core.StatusFailed, status)
	assert.Equal(t, []core.SourceStatus{core.StatusFailed}, statuses.get("qa-1"))
}

func TestDispatch_StatusWriteFailureIsLogged(t *testing.T) {
	client := &fakeClient{}
	statuses := newMemoryStatuses()
	statuses.err = errors.New("db down")
	o := newTestOrchestrator(t, client, statuses)

	assert.NotPanics(t, func() {
		o.DispatchQA(context.Background(), "ws", "qa-1", "q", "a")
		o.Wait()
	})
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestDispatchDelete_FireAndForget(t *testing.T) {
	client := &fakeClient{err: ErrPipelineUnreachable}
	statuses := newMemoryStatuses()
	o := newTestOrchestrator(t, client, statuses)

	o.DispatchDelete("ws", "src-1")
	o.Wait()

	assert.Equal(t, int32(1), client.deletes.Load())
	assert.Empty(t, statuses.get("src-1"))
}

func TestQuery_PassesThrough(t *testing.T) {
	client := &fakeClient{result: core.QueryResult{Answer: "yes", Sources: []core.QuerySource{}}}
	o := newTestOrchestrator(t, client, newMemoryStatuses())

	result, err := o.Query(context.Background(), "ws", "sess", "q")
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Answer)

	client.err = ErrPipelineUnreachable
	_, err = o.Query(context.Background(), "ws", "sess", "q")
	assert.ErrorIs(t, err, ErrPipelineUnreachable)
}

func TestNew_Validation(t *testing.T) {
	q, err := NewQueue()
	require.NoError(t, err)
	defer q.Close()

	_, err = New(nil, q, newMemoryStatuses())
	assert.ErrorIs(t, err, ErrClientRequired)
	_, err = New(&fakeClient{}, nil, newMemoryStatuses())
	assert.ErrorIs(t, err, ErrQueueRequired)
	_, err = New(&fakeClient{}, q, nil)
	assert.ErrorIs(t, err, ErrStatusStoreRequired)
	_, err = New(&fakeClient{}, q, newMemoryStatuses(), WithLogger(nil))
	assert.Error(t, err)
}
