package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingSender records deliveries and answers from a script.
type collectingSender struct {
	mu        sync.Mutex
	delivered []*Item
	blobs     [][]byte
	fail      func(item *Item) error
	done      chan string
}

func newCollectingSender() *collectingSender {
	return &collectingSender{done: make(chan string, 64)}
}

func (s *collectingSender) Send(_ context.Context, item *Item, data []byte) error {
	s.mu.Lock()
	var err error
	if s.fail != nil {
		err = s.fail(item)
	}
	if err == nil {
		s.delivered = append(s.delivered, item)
		s.blobs = append(s.blobs, data)
	}
	s.mu.Unlock()
	s.done <- item.SOPInstanceUID
	return err
}

func testRequest(instance string, priority Priority) EnqueueRequest {
	return EnqueueRequest{
		Data:              []byte("DATASET-" + instance),
		SOPClassUID:       "1.2.840.10008.5.1.4.1.1.7",
		SOPInstanceUID:    instance,
		TransferSyntaxUID: "1.2.840.10008.1.2.1",
		Host:              "pacs.example.org",
		Port:              11112,
		CallingAE:         "SENDER",
		CalledAE:          "PACS",
		Priority:          priority,
	}
}

func waitForStatus(t *testing.T, q *Queue, id string, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		item, err := q.Get(id)
		require.NoError(t, err)
		if item.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	item, _ := q.Get(id)
	t.Fatalf("item %s never reached %s (currently %s, error %q)", id, want, item.Status, item.LastError)
}

func TestQueue_EnqueuePersistsFiles(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	defer q.Close()

	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "index.log"))
	assert.FileExists(t, filepath.Join(dir, "items", item.ID+".meta"))
	assert.FileExists(t, filepath.Join(dir, "items", item.ID+".blob"))

	blob, err := q.Blob(item.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("DATASET-1.2.3"), blob)
}

func TestQueue_DeliverySucceeds(t *testing.T) {
	sender := newCollectingSender()
	q, err := Open(t.TempDir(), DefaultConfig(), sender)
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Start())

	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)

	waitForStatus(t, q, item.ID, StatusCompleted)

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptCount)
	assert.NotNil(t, got.CompletedAt)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.blobs, 1)
	assert.Equal(t, []byte("DATASET-1.2.3"), sender.blobs[0])
}

// TestQueue_CrashSafeResume is the crash-safety law: enqueue, drop the
// queue without delivering, reopen, and find the same item pending with the
// same bytes.
func TestQueue_CrashSafeResume(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	item, err := q.Enqueue(testRequest("1.2.3.4", PriorityHigh))
	require.NoError(t, err)
	// Simulate a crash: no Stop, just drop the handle.
	require.NoError(t, q.journal.close())

	reopened, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := reopened.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, restored.Status)
	assert.Equal(t, PriorityHigh, restored.Priority)
	assert.Equal(t, item.SOPInstanceUID, restored.SOPInstanceUID)

	blob, err := reopened.Blob(item.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("DATASET-1.2.3.4"), blob)
}

// TestQueue_SendingRewoundOnLoad: an item journaled as sending at crash
// time resumes as pending with its attempt count preserved.
func TestQueue_SendingRewoundOnLoad(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)

	// Forge the crash: journal says sending, meta records four attempts.
	q.mu.Lock()
	live := q.items[item.ID]
	live.Status = StatusSending
	live.AttemptCount = 4
	q.mu.Unlock()
	require.NoError(t, q.persist(live))
	require.NoError(t, q.journal.close())

	reopened, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := reopened.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, restored.Status)
	assert.Equal(t, 4, restored.AttemptCount)
}

// TestQueue_MissingBlobFailsOnLoad: metadata without its dataset cannot be
// delivered.
func TestQueue_MissingBlobFailsOnLoad(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)
	require.NoError(t, q.journal.close())

	require.NoError(t, os.Remove(filepath.Join(dir, "items", item.ID+".blob")))

	reopened, err := Open(dir, DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := reopened.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, restored.Status)
}

// TestQueue_PriorityOrdering: with one worker, high beats medium beats low
// regardless of enqueue order.
func TestQueue_PriorityOrdering(t *testing.T) {
	sender := newCollectingSender()
	cfg := DefaultConfig()
	q, err := Open(t.TempDir(), cfg, sender)
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(testRequest("low", PriorityLow))
	require.NoError(t, err)
	_, err = q.Enqueue(testRequest("medium", PriorityMedium))
	require.NoError(t, err)
	_, err = q.Enqueue(testRequest("high", PriorityHigh))
	require.NoError(t, err)

	require.NoError(t, q.Start())

	var order []string
	for i := 0; i < 3; i++ {
		select {
		case instance := <-sender.done:
			order = append(order, instance)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for deliveries")
		}
	}
	assert.Equal(t, []string{"high", "medium", "low"}, order)
}

// TestQueue_RetryableFailureRequeues: retryable errors bump the attempt
// count and land back in pending until the budget runs out.
func TestQueue_RetryableFailureRequeues(t *testing.T) {
	sender := newCollectingSender()
	calls := 0
	sender.fail = func(*Item) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset") // classifies transient
		}
		return nil
	}

	cfg := DefaultConfig()
	cfg.RetryDelay = func(int) time.Duration { return time.Millisecond }
	q, err := Open(t.TempDir(), cfg, sender)
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Start())

	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)

	waitForStatus(t, q, item.ID, StatusCompleted)
	got, _ := q.Get(item.ID)
	assert.Equal(t, 3, got.AttemptCount)
}

// TestQueue_AttemptBudgetExhausted: persistent failures end in failed after
// MaxRetryAttempts.
func TestQueue_AttemptBudgetExhausted(t *testing.T) {
	sender := newCollectingSender()
	sender.fail = func(*Item) error { return errors.New("connection refused") }

	cfg := DefaultConfig()
	cfg.MaxRetryAttempts = 3
	cfg.RetryDelay = func(int) time.Duration { return time.Millisecond }
	q, err := Open(t.TempDir(), cfg, sender)
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Start())

	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)

	waitForStatus(t, q, item.ID, StatusFailed)
	got, _ := q.Get(item.ID)
	assert.Equal(t, 3, got.AttemptCount)
	assert.NotEmpty(t, got.LastError)
}

func TestQueue_AdmissionControl(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQueueItems = 1
	q, err := Open(t.TempDir(), cfg, newCollectingSender())
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(testRequest("1", PriorityMedium))
	require.NoError(t, err)

	_, err = q.Enqueue(testRequest("2", PriorityMedium))
	var full *ErrQueueFull
	require.ErrorAs(t, err, &full)
}

func TestQueue_DrainRejectsEnqueues(t *testing.T) {
	q, err := Open(t.TempDir(), DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Start())

	q.Drain()
	_, err = q.Enqueue(testRequest("1", PriorityMedium))
	require.ErrorIs(t, err, ErrDraining)
}

func TestQueue_CancelAndManualRetry(t *testing.T) {
	q, err := Open(t.TempDir(), DefaultConfig(), newCollectingSender())
	require.NoError(t, err)
	defer q.Close()

	item, err := q.Enqueue(testRequest("1", PriorityMedium))
	require.NoError(t, err)
	require.NoError(t, q.Cancel(item.ID))

	got, _ := q.Get(item.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	// Cancelled is terminal.
	require.Error(t, q.Cancel(item.ID))

	// Manual retry applies only to failed items.
	require.Error(t, q.Retry(item.ID))
}

// TestQueue_ConnectivityGate: no dispatch while offline, dispatch resumes
// after the restore signal.
func TestQueue_ConnectivityGate(t *testing.T) {
	sender := newCollectingSender()
	cfg := DefaultConfig()
	cfg.ConnectivityRestoredDelay = time.Millisecond
	q, err := Open(t.TempDir(), cfg, sender)
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Start())

	q.NotifyConnectivityLost()
	q.NotifyConnectivityLost() // idempotent

	item, err := q.Enqueue(testRequest("1.2.3", PriorityMedium))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	got, _ := q.Get(item.ID)
	assert.Equal(t, StatusPending, got.Status, "offline queue must not dispatch")

	q.NotifyConnectivityRestored()
	waitForStatus(t, q, item.ID, StatusCompleted)
}
